package main

import (
	"time"

	"github.com/spf13/cobra"
)

// resumeSettleDelay is the brief pause between sending a resuming command
// and the follow-up status call, giving the target a moment to actually
// run to its next stop before the CLI asks where it landed (§6).
const resumeSettleDelay = 150 * time.Millisecond

// execCommand runs one of the four resuming commands (continue/step/
// next/finish): send it, wait briefly, then send a follow-up status and
// emit the combined paused-state record in one CLI invocation.
func execCommand(command string) *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   command,
		Short: execShortDescription(command),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := sessionClient(script)
			if err != nil {
				printErrorAndExit(err)
				return nil
			}
			defer client.Close()

			resp, err := client.SendCommand(newRequest(command, nil))
			if err != nil {
				printAndExit(resp)
				return nil
			}
			if _, isErr := resp["error"]; isErr {
				printAndExit(resp)
				return nil
			}

			time.Sleep(resumeSettleDelay)

			statusResp, err := client.SendCommand(newRequest("status", nil))
			if err != nil {
				printAndExit(statusResp)
				return nil
			}
			printAndExit(statusResp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func execShortDescription(command string) string {
	switch command {
	case "continue":
		return "Resume execution until the next stop"
	case "step":
		return "Step into the next line, descending into calls"
	case "next":
		return "Step over the next line without descending into calls"
	case "finish":
		return "Run until the current frame returns"
	default:
		return command
	}
}
