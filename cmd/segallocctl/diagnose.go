package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/rpcsrv"
)

var diagnoseSession string

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run the heap consistency checker against a session",
		Long: `diagnose asks the daemon to walk the named session's heap from
prologue to epilogue, verifying block sizes, prevSize linkage, the
no-adjacent-free-blocks invariant, and bucket membership.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := parseSession(diagnoseSession)
			if err != nil {
				return err
			}

			client, err := rpcsrv.Dial(addr)
			if err != nil {
				return err
			}
			defer client.CloseConnection()

			healthy, err := client.Diagnose(session)
			if err != nil {
				printInfo("unhealthy: %v\n", err)
				return nil
			}
			if healthy {
				printInfo("healthy\n")
				return nil
			}
			return fmt.Errorf("session %s reported unhealthy with no error detail", session)
		},
	}
	cmd.Flags().StringVar(&diagnoseSession, "session", "", "session id")
	cmd.MarkFlagRequired("session")
	return cmd
}

func init() {
	rootCmd.AddCommand(newDiagnoseCmd())
}
