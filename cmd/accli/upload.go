package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/iiasa/accli-go/accelerator"
	"github.com/iiasa/accli-go/accelerator/network"
	"github.com/spf13/cobra"
)

var uploadFlags struct {
	projectSlug string
	path        string
	folderName  string
	maxWorkers  int
	s3Bucket    string
	s3Region    string
	s3Endpoint  string
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a folder to a project",
	Long: `Upload every file of a folder to a project as <folder-name>/<relative path>.

Files already stored in the project are skipped. Only files with an extension are uploaded.

With --s3-bucket the parts go straight to an S3 bucket using the default AWS credential chain
instead of the Accelerator API.

Example:
  accli upload --project-slug my-project --path ./results --folder-name run_1`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFlags.projectSlug, "project-slug", "", "Project to upload to")
	uploadCmd.Flags().StringVar(&uploadFlags.path, "path", "", "Local folder to upload")
	uploadCmd.Flags().StringVar(&uploadFlags.folderName, "folder-name", "", "Remote folder name (letters, digits, underscores)")
	uploadCmd.Flags().IntVar(&uploadFlags.maxWorkers, "max-workers", 0, "Parallel part uploads, overrides ACCLI_MAX_WORKERS")
	uploadCmd.Flags().StringVar(&uploadFlags.s3Bucket, "s3-bucket", "", "Upload straight to this S3 bucket")
	uploadCmd.Flags().StringVar(&uploadFlags.s3Region, "s3-region", "us-east-1", "Region of the S3 bucket")
	uploadCmd.Flags().StringVar(&uploadFlags.s3Endpoint, "s3-endpoint", "", "Endpoint of an S3 compatible storage")

	_ = uploadCmd.MarkFlagRequired("project-slug")
	_ = uploadCmd.MarkFlagRequired("path")
	_ = uploadCmd.MarkFlagRequired("folder-name")
}

func runUpload(cmd *cobra.Command, _ []string) error {
	config, err := loadUploadConfig()
	if err != nil {
		return err
	}
	logger.EnableDebugLog(config.Debug)

	dir, err := filepath.Abs(uploadFlags.path)
	if err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is a file, only folders can be uploaded", uploadFlags.path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader, err := newUploader(ctx, config)
	if err != nil {
		return err
	}
	defer uploader.Close()

	files, err := uploader.UploadFolder(ctx, uploadFlags.projectSlug, dir, uploadFlags.folderName)
	if err != nil {
		return err
	}

	stats := uploader.Stats()
	logger.Printf("%d files, %d parts uploaded, average part upload time: %s", len(files), stats.Parts(), stats.AveragePart().Round(time.Millisecond))

	return nil
}

func loadUploadConfig() (accelerator.Config, error) {
	config, err := accelerator.LoadConfig(env.NewRepository())
	if err != nil {
		return accelerator.Config{}, err
	}
	if uploadFlags.maxWorkers > 0 {
		config.MaxWorkers = uploadFlags.maxWorkers
	}

	return config, nil
}

func newUploader(ctx context.Context, config accelerator.Config) (*accelerator.Uploader, error) {
	if uploadFlags.s3Bucket == "" {
		return accelerator.NewAPIUploader(config, logger)
	}

	session, err := network.NewS3Session(ctx, network.S3SessionParams{
		Region:   uploadFlags.s3Region,
		Bucket:   uploadFlags.s3Bucket,
		Endpoint: uploadFlags.s3Endpoint,
	}, logger)
	if err != nil {
		return nil, err
	}

	return accelerator.NewUploader(config.UploaderConfig(), session, logger), nil
}
