package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/config"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/database"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/records"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/services"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record <email> <reference>",
	Short: "Show the artifact record a caller would resolve",
	Long: `Look up the record for <email> and the upload reference in <reference> in the
configured record store (RECORD_STORE) and print its status.

The identity prefix of <reference> is ignored, exactly as the server ignores it.

Example:
  downloadctl record alice@example.com alice@example.com_1234`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Table == "" {
			return fmt.Errorf("TABLE is not configured")
		}

		var pool *pgxpool.Pool
		if cfg.RecordStore == config.RecordStorePostgres {
			p, err := database.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer p.Close()
			pool = p
		}

		svcs, err := services.NewServices(ctx, cfg, pool)
		if err != nil {
			return err
		}

		return showRecord(ctx, records.NewResolver(svcs.RecordStore), args[0], args[1], cmd.OutOrStdout())
	},
}

// showRecord prints the outcome of resolving reference for identity.
func showRecord(ctx context.Context, resolver *records.Resolver, identity, reference string, out io.Writer) error {
	record, err := resolver.Resolve(ctx, identity, reference)
	if err != nil {
		var resolveErr *records.ResolveError
		if errors.As(err, &resolveErr) && resolveErr.Code() == records.ErrCodeNotReady {
			fmt.Fprintf(out, "status:     %s\n", resolveErr.Status())
			fmt.Fprintln(out, "object key: (none yet)")
			return nil
		}
		return err
	}

	fmt.Fprintf(out, "record id:  %s\n", record.Key.ID())
	fmt.Fprintf(out, "status:     %s\n", record.Status)
	fmt.Fprintf(out, "object key: %s\n", record.ObjectKey)
	return nil
}
