package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/rpcsrv"
)

var openCapacity uint32

func newOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new heap session on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rpcsrv.Dial(addr)
			if err != nil {
				return err
			}
			defer client.CloseConnection()

			session, err := client.Open(openCapacity)
			if err != nil {
				return err
			}
			printInfo("%s\n", session)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&openCapacity, "capacity", 4194680, "region capacity in bytes")
	return cmd
}

func init() {
	rootCmd.AddCommand(newOpenCmd())
}

func parseSession(raw string) (uuid.UUID, error) {
	session, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id %q: %w", raw, err)
	}
	return session, nil
}
