package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"manuscript-workflow-api/models"
)

func newDirectoryCommand(ctx *commandContext) *cobra.Command {
	directoryCmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage the staff directory",
	}
	directoryCmd.AddCommand(newDirectoryAddCommand(ctx))
	directoryCmd.AddCommand(newDirectoryListCommand(ctx))
	return directoryCmd
}

func newDirectoryAddCommand(ctx *commandContext) *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an editor, reviewer, layout artist or proofreader",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.staffDirectory()
			if err != nil {
				return err
			}
			member := &models.StaffMember{
				Name:  name,
				Email: email,
				Role:  models.StaffRole(strings.TrimSpace(role)),
			}
			if err := dir.AddStaff(cmd.Context(), member); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) as %s: %s\n", member.Name, member.Email, member.Role, member.StaffID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", "", "editor, reviewer, layout_artist or proofreader")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newDirectoryListCommand(ctx *commandContext) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active staff",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := models.StaffRole(strings.TrimSpace(role))
			if r != "" && !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			dir, err := ctx.staffDirectory()
			if err != nil {
				return err
			}
			staff, err := dir.ListStaff(cmd.Context(), r)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
			for _, s := range staff {
				tw.AppendRow(table.Row{s.StaffID, s.Name, s.Email, string(s.Role)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Only list this role")
	return cmd
}
