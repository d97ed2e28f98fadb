package main

import (
	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/rpcsrv"
)

var (
	allocSession string
	allocSize    uint32
)

func newAllocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alloc",
		Short: "Allocate memory within a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := parseSession(allocSession)
			if err != nil {
				return err
			}

			client, err := rpcsrv.Dial(addr)
			if err != nil {
				return err
			}
			defer client.CloseConnection()

			offset, err := client.Allocate(session, allocSize)
			if err != nil {
				return err
			}
			printInfo("%d\n", offset)
			printVerbose("allocated %d bytes at offset %d in session %s\n", allocSize, offset, session)
			return nil
		},
	}
	cmd.Flags().StringVar(&allocSession, "session", "", "session id")
	cmd.Flags().Uint32Var(&allocSize, "size", 0, "bytes to allocate")
	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("size")
	return cmd
}

func init() {
	rootCmd.AddCommand(newAllocCmd())
}
