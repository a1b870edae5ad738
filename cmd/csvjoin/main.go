// Command csvjoin performs the streaming sort-merge CSV outer join
// (spec §4.8): positional SOURCE, --to TARGET (default stdin), --as
// OUTPUT (default stdout).
package main

import (
	"fmt"
	"os"

	"github.com/csvmigrate/engine/iosource"
	"github.com/csvmigrate/engine/join"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var (
		to string
		as string
	)

	rootCmd := &cobra.Command{
		Use:           "csvjoin SOURCE",
		Short:         "Streaming sort-merge join of two sorted CSV files",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args[0], to, as)
		},
	}
	rootCmd.Flags().StringVar(&to, "to", iosource.Stdio, "target CSV (default stdin)")
	rootCmd.Flags().StringVar(&as, "as", iosource.Stdio, "output CSV (default stdout)")

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("csvjoin failed")
		os.Exit(1)
	}
}

func run(sourceSpec, targetSpec, outSpec string) error {
	source, closeSource, err := openInput(sourceSpec)
	if err != nil {
		return err
	}
	defer closeSource()

	target, closeTarget, err := openInput(targetSpec)
	if err != nil {
		return err
	}
	defer closeTarget()

	out, closeOut, err := openOutput(outSpec)
	if err != nil {
		return err
	}
	defer closeOut()

	sum, err := join.Run(source, target, out, join.Options{})
	if err != nil {
		return err
	}
	logrus.WithField("rows", sum.Rows).Info("csvjoin complete")
	return nil
}

func openInput(spec string) (*os.File, func(), error) {
	path, err := iosource.Resolve(spec)
	if err != nil {
		return nil, nil, err
	}
	if path == iosource.Stdio {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csvjoin: opening %q: %w", spec, err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(spec string) (*os.File, func(), error) {
	path, err := iosource.Resolve(spec)
	if err != nil {
		return nil, nil, err
	}
	if path == iosource.Stdio {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csvjoin: creating %q: %w", spec, err)
	}
	return f, func() { f.Close() }, nil
}
