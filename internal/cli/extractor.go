package cli

import (
	"context"
	"fmt"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/platform"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/token"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// unimplementedExtractor is the seam individual platform adapters plug
// into; adapter internals are out of scope here. It pulls a token before
// failing so a misconfigured credential surfaces as an AuthError rather
// than a silent no-op.
type unimplementedExtractor struct {
	platform string
	tokens   token.Provider
}

func newUnimplementedExtractor(platformName string, tokens token.Provider) platform.Extractor {
	return &unimplementedExtractor{platform: platformName, tokens: tokens}
}

func (e *unimplementedExtractor) Extract(ctx context.Context, table string, dateRange platform.DateRange, driverKeys []string) (*tabular.Payload, error) {
	if _, err := e.tokens.GetToken(ctx, e.platform); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no adapter registered for platform %q table %q", e.platform, table)
}

// newCredentialRefresher wires a platform's configured client credentials
// into a token.Refresher. The actual OAuth exchange against each
// platform's endpoint is out of scope; this refresher only validates that
// the credentials needed for the exchange are present.
func newCredentialRefresher(creds config.PlatformCredentials) token.Refresher {
	return func(ctx context.Context, platformName string) (token.Token, error) {
		if creds.ClientID == "" || creds.ClientSecret == "" {
			return token.Token{}, fmt.Errorf("platform %q: missing client credentials", platformName)
		}
		return token.Token{}, fmt.Errorf("platform %q: no token exchange implemented", platformName)
	}
}
