package commands

import (
	"fmt"

	"github.com/rollgate/rollgate-go/internal/adminclient"
	"github.com/rollgate/rollgate-go/internal/cli"
)

func newClientFromFlags() (*adminclient.Client, error) {
	ctxCfg, err := cli.ResolveContext(contextName, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return adminclient.NewClient(ctxCfg.BaseURL, ctxCfg.APIKey), nil
}
