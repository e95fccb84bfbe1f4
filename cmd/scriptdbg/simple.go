package main

import (
	"github.com/spf13/cobra"

	"github.com/alonw0/scriptdbg/internal/wire"
)

// sendSimple resolves the current session, sends one command, prints the
// response, and exits — the shape shared by every non-resuming command.
func sendSimple(script, command string, fields wire.Record) {
	client, _, err := sessionClient(script)
	if err != nil {
		printErrorAndExit(err)
		return
	}
	defer client.Close()
	resp, err := client.SendCommand(newRequest(command, fields))
	if err != nil {
		printAndExit(resp)
		return
	}
	printAndExit(resp)
}

func breakCmd() *cobra.Command {
	var script, file, exception, condition string
	var line int
	cmd := &cobra.Command{
		Use:   "break",
		Short: "Set a line or exception breakpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := wire.Record{}
			if exception != "" {
				fields["exception"] = exception
			} else {
				if file == "" || line == 0 {
					printErrorAndExit(errBreakpointSpec)
					return nil
				}
				fields["file"] = file
				fields["line"] = line
				if condition != "" {
					fields["condition"] = condition
				}
			}
			sendSimple(script, "break", fields)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	cmd.Flags().StringVarP(&file, "file", "f", "", "breakpoint file")
	cmd.Flags().IntVarP(&line, "line", "l", 0, "breakpoint line")
	cmd.Flags().StringVarP(&condition, "cond", "c", "", "breakpoint condition expression")
	cmd.Flags().StringVarP(&exception, "exception", "e", "", "exception type name, or * for any")
	return cmd
}

func deleteCmd() *cobra.Command {
	var script, file, exception string
	var line, number int
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a breakpoint by number, (file,line), or exception filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := wire.Record{}
			switch {
			case number != 0:
				fields["number"] = number
			case exception != "":
				fields["exception"] = exception
			case file != "":
				fields["file"] = file
				fields["line"] = line
			default:
				printErrorAndExit(errBreakpointSpec)
				return nil
			}
			sendSimple(script, "delete", fields)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	cmd.Flags().StringVarP(&file, "file", "f", "", "breakpoint file")
	cmd.Flags().IntVarP(&line, "line", "l", 0, "breakpoint line")
	cmd.Flags().IntVarP(&number, "number", "n", 0, "breakpoint id")
	cmd.Flags().StringVarP(&exception, "exception", "e", "", "exception type name, or * for all")
	return cmd
}

func breakpointsCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "breakpoints",
		Short: "List all breakpoints and exception filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			sendSimple(script, "breakpoints", nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func localsCmd() *cobra.Command {
	var script string
	var depth int
	cmd := &cobra.Command{
		Use:   "locals",
		Short: "Format the selected frame's local bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := wire.Record{}
			if depth > 0 {
				fields["depth"] = depth
			}
			sendSimple(script, "locals", fields)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "formatting depth (default 2)")
	return cmd
}

func globalsCmd() *cobra.Command {
	var script string
	var depth int
	cmd := &cobra.Command{
		Use:   "globals",
		Short: "Format the selected frame's global bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := wire.Record{}
			if depth > 0 {
				fields["depth"] = depth
			}
			sendSimple(script, "globals", fields)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "formatting depth (default 2)")
	return cmd
}

func evalCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "eval <expr>",
		Short: "Evaluate an expression in the selected frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sendSimple(script, "eval", wire.Record{"expr": args[0]})
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func inspectCmd() *cobra.Command {
	var script string
	var depth int
	cmd := &cobra.Command{
		Use:   "inspect <expr>",
		Short: "Deep-inspect a named binding or evaluated expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := wire.Record{"expr": args[0]}
			if depth > 0 {
				fields["depth"] = depth
			}
			sendSimple(script, "inspect", fields)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "attribute walk depth (default 10)")
	return cmd
}

func stackCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Enumerate frame snapshots, marking the selected one",
		RunE: func(cmd *cobra.Command, args []string) error {
			sendSimple(script, "stack", nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func upCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Move the selected frame toward the caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			sendSimple(script, "up", nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func downCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Move the selected frame toward the innermost frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			sendSimple(script, "down", nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func historyCmd() *cobra.Command {
	var script string
	var count int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent stop and eval events recorded for this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := wire.Record{}
			if count > 0 {
				fields["count"] = count
			}
			sendSimple(script, "history", fields)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of recent events (default 20)")
	return cmd
}

func quitCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "quit",
		Short: "Tear down the daemon and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			sendSimple(script, "quit", nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}
