package main

import (
	"github.com/spf13/cobra"

	"github.com/alonw0/scriptdbg/internal/config"
	"github.com/alonw0/scriptdbg/internal/registry"
	"github.com/alonw0/scriptdbg/internal/wire"
)

func statusCmd() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report live session status, or list all active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if script != "" {
				client, _, err := sessionClient(script)
				if err != nil {
					printAndExit(noActiveSessionsRecord())
					return nil
				}
				defer client.Close()
				resp, err := client.SendCommand(newRequest("status", nil))
				if err != nil {
					printAndExit(resp)
					return nil
				}
				printAndExit(resp)
				return nil
			}

			stateDir, err := config.UserStateDir()
			if err != nil {
				printErrorAndExit(err)
				return nil
			}
			reg := registry.New(stateDir)
			sessions, err := reg.ListActive()
			if err != nil {
				printErrorAndExit(err)
				return nil
			}
			if len(sessions) == 0 {
				printAndExit(noActiveSessionsRecord())
				return nil
			}
			recs := make([]wire.Record, 0, len(sessions))
			for _, s := range sessions {
				recs = append(recs, sessionRecord(s))
			}
			printAndExit(wire.Record{"status": "ok", "sessions": recs})
			return nil
		},
	}
	cmd.Flags().StringVarP(&script, "script", "s", "", "target script path")
	return cmd
}

func noActiveSessionsRecord() wire.Record {
	return wire.Record{"status": "no_active_sessions", "sessions": []wire.Record{}}
}

func sessionRecord(s *registry.Session) wire.Record {
	rec := wire.Record{
		"id":          s.ID,
		"script_path": s.ScriptPath,
		"pid":         s.PID,
		"socket_path": s.SocketPath,
		"created_at":  s.CreatedAt,
		"status":      string(s.Status),
	}
	if s.ErrorMessage != "" {
		rec["error_message"] = s.ErrorMessage
	}
	return rec
}
