package main

import (
	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/rpcsrv"
)

var (
	freeSession string
	freeOffset  uint32
)

func newFreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "free",
		Short: "Free a previously allocated block within a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := parseSession(freeSession)
			if err != nil {
				return err
			}

			client, err := rpcsrv.Dial(addr)
			if err != nil {
				return err
			}
			defer client.CloseConnection()

			if err := client.Free(session, freeOffset); err != nil {
				return err
			}
			printVerbose("freed offset %d in session %s\n", freeOffset, session)
			return nil
		},
	}
	cmd.Flags().StringVar(&freeSession, "session", "", "session id")
	cmd.Flags().Uint32Var(&freeOffset, "offset", 0, "offset to free")
	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("offset")
	return cmd
}

func init() {
	rootCmd.AddCommand(newFreeCmd())
}
