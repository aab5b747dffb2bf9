package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dQL/cmd/info"
	"github.com/ValentinKolb/dQL/cmd/serve"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dql",
		Short: "transactional key-value store with query pushdown",
		Long: fmt.Sprintf(`dQL (v%s)

A transactional, multi-version key-value store written in Go that
executes filters, aggregations and sorting next to the data instead
of shipping raw rows to the client.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dQL",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dQL v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(info.InfoCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
