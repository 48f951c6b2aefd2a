// Command pkgar creates, extracts, lists, removes and verifies pkgar
// archives: signed, content-addressed, optionally LZMA2-compressed
// packages of files and symlinks.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/pkgar/internal/pkglog"
	"github.com/provide-io/pkgar/internal/permissions"
	"github.com/provide-io/pkgar/pkgar"
	"github.com/provide-io/pkgar/pkgcore"
	"github.com/provide-io/pkgar/pkgkeys"
)

const version = "0.1.0"

var (
	pkeyPath    string
	skeyPath    string
	archivePath string
	compress    bool
	modeFlag    string
	logLevel    string
	jsonLog     bool
)

func builderOptions(packaging pkgcore.Packaging, log hclog.Logger) ([]pkgar.Option, error) {
	opts := []pkgar.Option{pkgar.WithPackaging(packaging), pkgar.WithLogger(log)}
	if modeFlag != "" {
		perm, err := permissions.ParseOctalString(modeFlag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pkgar.WithModeOverride(os.FileMode(perm)))
	}
	return opts, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "pkgar",
		Short:   "Create, extract and inspect pkgar archives",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides PKGAR_LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Emit logs as JSON")

	rootCmd.AddCommand(
		newCreateCmd(),
		newExtractCmd(),
		newListCmd(),
		newRemoveCmd(),
		newVerifyCmd(),
		newSplitCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logger(name string) hclog.Logger {
	if jsonLog {
		os.Setenv("PKGAR_JSON_LOG", "1")
	}
	level := logLevel
	if level == "" {
		level = pkglog.Level()
	}
	return pkglog.New(name, level, os.Stderr)
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <basedir>",
		Short: "Create an archive from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0])
		},
	}
	cmd.Flags().StringVarP(&skeyPath, "skey", "s", pkgkeys.DefaultSeckeyPath(), "Secret key file")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "", "Archive file (required)")
	cmd.Flags().BoolVarP(&compress, "compress", "c", false, "Compress the data region with LZMA2")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "Force this octal permission (e.g. 644) on every file, ignoring the source tree's own modes")
	cmd.MarkFlagRequired("archive")
	return cmd
}

func runCreate(basedir string) error {
	log := logger("pkgar-create")

	skeyFile, err := pkgkeys.GetSKey(os.Stderr, skeyPath)
	if err != nil {
		return fmt.Errorf("reading secret key: %w", err)
	}
	priv, err := skeyFile.Ed25519()
	if err != nil {
		return fmt.Errorf("decrypting secret key: %w", err)
	}

	packaging := pkgcore.PackagingUncompressed
	if compress {
		packaging = pkgcore.PackagingLZMA2
	}

	opts, err := builderOptions(packaging, log)
	if err != nil {
		return err
	}
	builder := pkgar.NewBuilder(priv, opts...)
	if err := builder.AddDir(basedir); err != nil {
		return fmt.Errorf("scanning %s: %w", basedir, err)
	}

	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	size, err := builder.WriteArchive(out)
	if err != nil {
		return fmt.Errorf("writing %s: %w", archivePath, err)
	}
	log.Info("archive created", "path", archivePath, "size", size)
	return nil
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <basedir>",
		Short: "Extract an archive into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0])
		},
	}
	cmd.Flags().StringVarP(&pkeyPath, "pkey", "p", pkgkeys.DefaultPubkeyPath(), "Public key file")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "", "Archive file (required)")
	cmd.MarkFlagRequired("archive")
	return cmd
}

func openVerifiedSource(pkeyPath, archivePath string) (*pkgcore.FileSource, error) {
	pkeyFile, err := pkgkeys.OpenPublicKeyFile(pkeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	pub, err := pkeyFile.PublicKey()
	if err != nil {
		return nil, err
	}

	src, err := pkgcore.NewFileSource(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", archivePath, err)
	}
	if _, err := src.ReadHeader(pub); err != nil {
		src.Close()
		return nil, fmt.Errorf("verifying %s: %w", archivePath, err)
	}
	return src, nil
}

func runExtract(basedir string) error {
	log := logger("pkgar-extract")

	src, err := openVerifiedSource(pkeyPath, archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	tx := pkgar.NewTransaction(log)
	if err := tx.Install(src, basedir); err != nil {
		return fmt.Errorf("staging install: %w", err)
	}
	count, err := tx.Commit()
	if err != nil {
		return err
	}
	log.Info("extracted", "path", basedir, "entries", count)
	return nil
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <basedir>",
		Short: "Remove an archive's files from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(args[0])
		},
	}
	cmd.Flags().StringVarP(&pkeyPath, "pkey", "p", pkgkeys.DefaultPubkeyPath(), "Public key file")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "", "Archive file (required)")
	cmd.MarkFlagRequired("archive")
	return cmd
}

func runRemove(basedir string) error {
	log := logger("pkgar-remove")

	src, err := openVerifiedSource(pkeyPath, archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	tx := pkgar.NewTransaction(log)
	if err := tx.Remove(src, basedir); err != nil {
		return fmt.Errorf("staging remove: %w", err)
	}
	count, err := tx.Commit()
	if err != nil {
		return err
	}
	log.Info("removed", "path", basedir, "entries", count)
	return nil
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an archive's entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}
	cmd.Flags().StringVarP(&pkeyPath, "pkey", "p", pkgkeys.DefaultPubkeyPath(), "Public key file")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "", "Archive file (required)")
	cmd.MarkFlagRequired("archive")
	return cmd
}

func runList() error {
	src, err := openVerifiedSource(pkeyPath, archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	paths, err := pkgar.List(src)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <basedir>",
		Short: "Check installed files against an archive's declared hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0])
		},
	}
	cmd.Flags().StringVarP(&pkeyPath, "pkey", "p", pkgkeys.DefaultPubkeyPath(), "Public key file")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "", "Archive file (required)")
	cmd.MarkFlagRequired("archive")
	return cmd
}

func runVerify(basedir string) error {
	src, err := openVerifiedSource(pkeyPath, archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	drifts, err := pkgar.Verify(src, basedir)
	if err != nil {
		return err
	}
	for _, d := range drifts {
		fmt.Printf("%s: %s\n", d.Path, d.Kind)
	}
	if len(drifts) > 0 {
		return fmt.Errorf("pkgar: %d path(s) diverged from %s", len(drifts), archivePath)
	}
	return nil
}

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <head> [data]",
		Short: "Split an existing archive into its head (header + entry table) and data parts",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataOut := ""
			if len(args) > 1 {
				dataOut = args[1]
			}
			return runSplit(args[0], dataOut)
		},
	}
	cmd.Flags().StringVarP(&pkeyPath, "pkey", "p", pkgkeys.DefaultPubkeyPath(), "Public key file")
	cmd.Flags().StringVarP(&archivePath, "archive", "a", "", "Archive file to split (required)")
	cmd.MarkFlagRequired("archive")
	return cmd
}

// runSplit slices an already-built, signature-verified combined archive at
// archivePath into a head file (header + entry table, exactly
// Header.TotalHeadSize bytes) and, if dataOut is given, a data file holding
// the remaining bytes verbatim. It does not build anything new; pairing the
// two back up (HEAD ‖ DATA) reproduces the original archive byte for byte.
func runSplit(headOut, dataOut string) error {
	log := logger("pkgar-split")

	src, err := openVerifiedSource(pkeyPath, archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	headSize, err := src.Header().TotalHeadSize()
	if err != nil {
		return err
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	headFile, err := os.OpenFile(headOut, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer headFile.Close()
	if _, err := io.CopyN(headFile, archive, int64(headSize)); err != nil {
		return fmt.Errorf("writing %s: %w", headOut, err)
	}
	log.Info("wrote head", "path", headOut, "size", headSize)

	if dataOut == "" {
		return nil
	}
	dataFile, err := os.OpenFile(dataOut, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dataFile.Close()
	n, err := io.Copy(dataFile, archive)
	if err != nil {
		return fmt.Errorf("writing %s: %w", dataOut, err)
	}
	log.Info("wrote data", "path", dataOut, "size", n)
	return nil
}
