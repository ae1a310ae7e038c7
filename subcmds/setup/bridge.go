// Copyright (c) 2025 BVK Chaitanya

package setup

import (
	"context"
	"flag"
	"fmt"
	"net/url"

	"github.com/bvk/buybot/venue"
	"github.com/visvasity/cli"
)

type Bridge struct {
	dataDir     string
	skipTesting bool

	key    string
	secret string

	bridgeURL string
}

func (c *Bridge) Purpose() string {
	return "Setup configures the purchase bridge API keys"
}

func (c *Bridge) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("bridge", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.key, "key", "", "bridge API key identifier")
	fset.StringVar(&c.secret, "secret", "", "bridge API signing secret")
	fset.StringVar(&c.bridgeURL, "bridge-url", "http://127.0.0.1:18081", "base url for the purchase bridge endpoint")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "bridge", fset, cli.CmdFunc(c.run)
}

func (c *Bridge) Description() string {
	return `

Command "bridge" configures the API keys used to sign requests to the
purchase bridge endpoint. The keys are required before the daemon can read
prices or execute purchases:

  $ buybot setup bridge --key=k1239acd --secret=SJS2...TVP4KV

`
}

func (c *Bridge) run(ctx context.Context, args []string) error {
	_, secretsPath, err := resolveDataDir(c.dataDir)
	if err != nil {
		return err
	}
	secrets, err := loadSecrets(secretsPath)
	if err != nil {
		return err
	}

	secrets.Bridge = &venue.Credentials{
		Key:    c.key,
		Secret: c.secret,
	}
	if err := secrets.Bridge.Check(); err != nil {
		return err
	}

	if !c.skipTesting {
		baseURL, err := url.Parse(c.bridgeURL)
		if err != nil {
			return fmt.Errorf("could not parse bridge url %q: %w", c.bridgeURL, err)
		}
		bridge, err := venue.NewBridge(baseURL, secrets.Bridge, nil /* opts */)
		if err != nil {
			return err
		}
		defer bridge.Close()

		// A successful price read proves the keys are accepted.
		price, err := bridge.ReadPrice(ctx)
		if err != nil {
			return fmt.Errorf("could not read price from the bridge: %w", err)
		}
		fmt.Printf("bridge reports current price %s\n", price)
	}

	return saveSecrets(secretsPath, secrets)
}
