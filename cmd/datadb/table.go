package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hatlonely/datadb/rdb"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <schema.table>",
		Short: "Check whether a table exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.table(args[0])
			if err != nil {
				return err
			}
			exists, err := a.helper.DoesTableExist(cmd.Context(), table)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		},
	}
}

func (a *app) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema.table>",
		Short: "List the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.table(args[0])
			if err != nil {
				return err
			}
			description, err := a.helper.DescribeTable(cmd.Context(), table)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COLUMN\tTYPE\tNULLABLE\tPRIMARY\tINDEX")
			for _, c := range description {
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\n", c.Column, c.Type, c.Nullable, c.Primary, c.Index)
			}
			return w.Flush()
		},
	}
}

func (a *app) createSyntaxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-syntax <schema.table>",
		Short: "Print the DDL of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.table(args[0])
			if err != nil {
				return err
			}
			ddl, found, err := a.helper.CreateSyntax(cmd.Context(), table)
			if err != nil {
				return err
			}
			if !found {
				return errors.Errorf("table %s not found", table.FullName())
			}
			fmt.Fprintln(cmd.OutOrStdout(), ddl)
			return nil
		},
	}
}

func (a *app) copyCmd() *cobra.Command {
	var columns string
	cmd := &cobra.Command{
		Use:   "copy <from> <to>",
		Short: "Copy all rows of one table into another on the same connection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.table(args[0])
			if err != nil {
				return err
			}
			to, err := a.table(args[1])
			if err != nil {
				return err
			}
			if cols := splitColumns(columns); len(cols) > 0 {
				from.SetColumns(cols...)
				to.SetColumns(cols...)
			}
			res, err := a.helper.CopyTable(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printAffected(cmd, res)
		},
	}
	cmd.Flags().StringVar(&columns, "columns", "", "comma separated columns to copy")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var where, join, on, softDeleted, softUpdated string
	cmd := &cobra.Command{
		Use:   "delete <schema.table>",
		Short: "Delete rows, or mark them deleted when the table uses soft deletes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.table(args[0])
			if err != nil {
				return err
			}
			table.SetSoftColumns(rdb.SoftColumns{Deleted: softDeleted, Updated: softUpdated})

			var res rdb.Result
			if join != "" {
				if on == "" {
					return errors.New("--on is required with --join")
				}
				joined, err := a.table(join)
				if err != nil {
					return err
				}
				res, err = a.helper.DeleteTableJoin(cmd.Context(), table, joined, on, where)
				if err != nil {
					return err
				}
			} else {
				res, err = a.helper.DeleteFromTable(cmd.Context(), table, where)
				if err != nil {
					return err
				}
			}
			return printAffected(cmd, res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&where, "where", "", "sql condition selecting the rows to delete")
	f.StringVar(&join, "join", "", "schema.table to join against")
	f.StringVar(&on, "on", "", "join condition")
	f.StringVar(&softDeleted, "soft-deleted", "", "timestamp column marking deleted rows")
	f.StringVar(&softUpdated, "soft-updated", "", "timestamp column updated together with soft deletes")
	return cmd
}

func printAffected(cmd *cobra.Command, res rdb.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "RowsAffected failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
	return nil
}
