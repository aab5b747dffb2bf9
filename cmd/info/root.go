package info

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/rpc/client"
	"github.com/spf13/cobra"
)

// InfoCmd prints the storage statistics of a running server.
var InfoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Print the storage statistics of a dQL server",
	PreRunE: cmdUtil.BindCommandFlags,
	RunE:    run,
}

func init() {
	cobra.OnInitialize(cmdUtil.InitClientConfig)
	cmdUtil.SetupRPCClientFlags(InfoCmd)
}

func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetTransport()
	if err != nil {
		return err
	}

	c, err := client.NewRPCClient(*cmdUtil.GetClientConfig(), t, s)
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.Info()
	if err != nil {
		return err
	}

	fmt.Printf("Keys              : %d\n", info.Keys)
	fmt.Printf("Locks             : %d\n", info.Locks)
	fmt.Printf("Versions          : %d\n", info.Versions)
	fmt.Printf("Avg value size    : %d B\n", info.AvgValueSize)
	fmt.Printf("P95 value size    : %d B (estimate)\n", info.P95ValueSizeEst)
	fmt.Printf("Value size samples: %d\n", info.ValueSizeSamples)
	return nil
}
