package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tasti/api/internal/presign"
	"github.com/tasti/api/internal/storage"
)

// testObjectKey is the scratch object used by test-upload and test-download.
const testObjectKey = "test-image.png"

// pngMagic is the PNG file signature.
var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// testPNG is a valid 1x1 PNG.
var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde" +
	"\x00\x00\x00\tpHYs\x00\x00\x0b\x13\x00\x00\x0b\x13\x01\x00\x9a\x9c\x18" +
	"\x00\x00\x00\nIDATx\x9cc\xf8\x00\x00\x00\x01\x00\x01\x00\x18\xdd\x8d\xb4" +
	"\x00\x00\x00\x00IEND\xaeB`\x82")

type bucketInspector interface {
	Bucket() string
	BucketExists(ctx context.Context) (bool, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// NewBucketCommand creates the bucket command
func NewBucketCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Inspect the image bucket",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check that the bucket exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), e.store)
		},
	})

	var prefix string
	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List objects in the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runList(cmd.Context(), cmd.OutOrStdout(), e.store, prefix)
		},
	}
	lsCmd.Flags().StringVar(&prefix, "prefix", "", "only list keys under this prefix")
	cmd.AddCommand(lsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "test-upload",
		Short: "Upload a 1x1 PNG through a presigned PUT URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runTestUpload(cmd.Context(), cmd.OutOrStdout(), e.broker, http.DefaultClient)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test-download",
		Short: "Download the test PNG through a presigned GET URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runTestDownload(cmd.Context(), cmd.OutOrStdout(), e.broker, http.DefaultClient)
		},
	})

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, b bucketInspector) error {
	fmt.Fprintf(out, "Checking bucket: %s\n", b.Bucket())
	ok, err := b.BucketExists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.Bucket(), err)
	}
	if !ok {
		return fmt.Errorf("bucket %q does not exist", b.Bucket())
	}
	fmt.Fprintf(out, "Bucket %q exists\n", b.Bucket())
	return nil
}

func runList(ctx context.Context, out io.Writer, b bucketInspector, prefix string) error {
	fmt.Fprintf(out, "Listing objects in bucket: %s\n", b.Bucket())
	objects, err := b.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	if len(objects) == 0 {
		fmt.Fprintln(out, "No objects found in bucket")
		return nil
	}
	for _, o := range objects {
		fmt.Fprintf(out, "  %s - %d bytes - %s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runTestUpload(ctx context.Context, out io.Writer, broker *presign.Broker, client *http.Client) error {
	grant, err := broker.RequestAccess(ctx, presign.GenericPolicy, presign.Request{
		Method: string(storage.MethodPut),
		Key:    testObjectKey,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Generated presigned URL for %s: %s\n", grant.Key, grant.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.URL, bytes.NewReader(testPNG))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	fmt.Fprintf(out, "Upload response status: %d\n", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed: %s", bytes.TrimSpace(body))
	}
	fmt.Fprintln(out, "Image upload successful!")
	return nil
}

func runTestDownload(ctx context.Context, out io.Writer, broker *presign.Broker, client *http.Client) error {
	grant, err := broker.RequestAccess(ctx, presign.GenericPolicy, presign.Request{
		Method: string(storage.MethodGet),
		Key:    testObjectKey,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Generated download URL for %s: %s\n", grant.Key, grant.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, grant.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	fmt.Fprintf(out, "Download response status: %d\n", resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", bytes.TrimSpace(body))
	}

	fmt.Fprintf(out, "Download successful! Content length: %d bytes\n", len(body))
	if bytes.HasPrefix(body, pngMagic) {
		fmt.Fprintln(out, "Content appears to be valid PNG")
	} else {
		fmt.Fprintln(out, "Warning: content may not be valid PNG")
	}
	return nil
}
