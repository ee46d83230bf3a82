// datadb 命令行，对配置的数据库执行表级操作和导入导出
//
// 用法:
//
//	datadb --config datadb.yaml exists shop.users
//	datadb --driver mysql --dsn 'root:pass@tcp(localhost:3306)/shop' export shop.users -o users.json
//	datadb --config redshift.yaml export analytics.events -o s3://bucket/events/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
