package main

import (
	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/rpcsrv"
)

var (
	reallocSession string
	reallocOffset  uint32
	reallocSize    uint32
)

func newReallocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realloc",
		Short: "Resize a previously allocated block within a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := parseSession(reallocSession)
			if err != nil {
				return err
			}

			client, err := rpcsrv.Dial(addr)
			if err != nil {
				return err
			}
			defer client.CloseConnection()

			offset, err := client.Realloc(session, reallocOffset, reallocSize)
			if err != nil {
				return err
			}
			printInfo("%d\n", offset)
			return nil
		},
	}
	cmd.Flags().StringVar(&reallocSession, "session", "", "session id")
	cmd.Flags().Uint32Var(&reallocOffset, "offset", 0, "offset to resize")
	cmd.Flags().Uint32Var(&reallocSize, "size", 0, "new size in bytes")
	cmd.MarkFlagRequired("session")
	cmd.MarkFlagRequired("offset")
	cmd.MarkFlagRequired("size")
	return cmd
}

func init() {
	rootCmd.AddCommand(newReallocCmd())
}
