package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/auth"
	"github.com/FIAP-Grupo-11SOAT/download-lambda/internal/logger"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an identity token",
	Long: `Verify an identity token the way the server does and print the caller identity.

The issuer defaults to ISSUER_URL (or the Cognito user pool issuer).

Example:
  downloadctl verify --token "eyJ..."
  echo "eyJ..." | downloadctl verify --issuer https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := tokenToVerify
		if token == "" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			token = strings.TrimSpace(string(b))
		}

		issuer := issuerOverride
		if issuer == "" {
			issuer = cfg.Issuer()
		}
		if issuer == "" {
			return fmt.Errorf("no issuer: set ISSUER_URL, COGNITO_REGION/COGNITO_USER_POOL_ID or --issuer")
		}

		keyCache, err := auth.NewKeyCache(cmd.Context(),
			auth.NewKeyCacheConfig(cfg.JWKCacheHTTPTimeout, true, cfg.JWKCacheMinRefresh, cfg.JWKCacheMaxRefresh),
			appLogger)
		if err != nil {
			return err
		}

		return verifyToken(cmd.Context(), auth.NewVerifier(keyCache), token, issuer, cmd.OutOrStdout())
	},
}

var (
	tokenToVerify  string
	issuerOverride string
)

func init() {
	verifyCmd.Flags().StringVar(&tokenToVerify, "token", "", "token to verify (read from stdin when omitted)")
	verifyCmd.Flags().StringVar(&issuerOverride, "issuer", "", "expected issuer (defaults to the configured issuer)")
}

// verifyToken prints the identity carried by token or returns the rejection.
func verifyToken(ctx context.Context, verifier *auth.Verifier, token, issuer string, out io.Writer) error {
	identity, err := verifier.Verify(ctx, "Bearer "+token, issuer)
	if err != nil {
		var code auth.ErrorCode
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			code = authErr.Code()
		}
		logger.ContextRequestLogger(ctx).Debug("token rejected",
			slog.String("code", string(code)),
			slog.String("error", err.Error()))
		return fmt.Errorf("token rejected (%s): %w", code, err)
	}

	fmt.Fprintf(out, "issuer:  %s\n", issuer)
	fmt.Fprintf(out, "email:   %s\n", identity.Email)
	fmt.Fprintf(out, "subject: %s\n", identity.Subject)
	fmt.Fprintf(out, "kid:     %s\n", identity.KeyID)
	return nil
}
