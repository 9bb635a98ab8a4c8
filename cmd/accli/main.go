package main

import (
	"os"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
)

var logger = log.NewLogger()

var rootCmd = &cobra.Command{
	Use:   "accli",
	Short: "Accelerator command line",
	Long: `accli uploads files to IIASA Accelerator projects.

Configuration is read from the environment:
  ACCLI_TOKEN        access token (required)
  ACCLI_SERVER_URL   API server (default https://acceleratoapi.iiasa.ac.at)
  ACCLI_MAX_WORKERS  parallel part uploads (default: number of CPUs)
  ACCLI_CHUNK_SIZE   part size, e.g. 200MiB
  ACCLI_INSECURE     skip TLS certificate verification
  ACCLI_FAIL_FAST    cancel the remaining parts after the first failure (default true)
  ACCLI_DEBUG        enable debug logs`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(uploadCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}
