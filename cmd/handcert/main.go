// handcert issues a single-domain certificate from an ACME CA using
// the DNS-01 challenge, with the TXT record published by hand.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/handcert/handcert/acme/client"
	"github.com/handcert/handcert/acme/dns01"
	"github.com/handcert/handcert/bundle"
	"github.com/handcert/handcert/cmd"
	"github.com/handcert/handcert/issuer"
)

const (
	DIRECTORY_DEFAULT = client.LetsEncryptDirectory
	CONFIG_DEFAULT    = "handcert.json"
	KEY_TYPE_DEFAULT  = "ecdsa"
)

// fileConfig is the JSON issuance record read from -config.
type fileConfig struct {
	Domain      string `json:"domain"`
	NotifyEmail string `json:"notifyEmail"`
	PFXPassword string `json:"pfxPassword,omitempty"`
	CountryName string `json:"countryName"`
	State       string `json:"state"`
	Locality    string `json:"locality"`
}

func loadConfig(path string) (fileConfig, error) {
	var conf fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	if err := json.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parsing %q: %s", path, err)
	}
	if conf.Domain == "" {
		return conf, fmt.Errorf("%q has no \"domain\" field", path)
	}
	return conf, nil
}

// terminalPrompter prints the DNS instructions and blocks reading
// stdin until the operator answers. Cancelling the context (e.g. ^C)
// unblocks the wait.
type terminalPrompter struct{}

func (terminalPrompter) Confirm(ctx context.Context, instr issuer.Instructions) (bool, error) {
	heading := color.New(color.FgCyan, color.Bold)
	value := color.New(color.FgGreen)

	heading.Println("\nPublish the following DNS TXT record:")
	fmt.Printf("  Name:  %s\n", value.Sprint(instr.RecordName))
	fmt.Printf("  Value: %s\n\n", value.Sprint(instr.RecordValue))
	fmt.Printf("Once the record for %q is live, type \"yes\" to continue: ", instr.Domain)

	answers := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			errs <- err
			return
		}
		answers <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errs:
		return false, err
	case answer := <-answers:
		return answer == "yes" || answer == "y", nil
	}
}

func main() {
	directory := flag.String(
		"directory",
		DIRECTORY_DEFAULT,
		"Directory URL for the ACME server (use "+
			"https://acme-staging-v02.api.letsencrypt.org/directory to rehearse)")

	caCert := flag.String(
		"ca",
		"",
		"Optional CA certificate(s) for verifying ACME server HTTPS")

	configPath := flag.String(
		"config",
		CONFIG_DEFAULT,
		"Path to the JSON issuance config")

	outBase := flag.String(
		"out",
		"",
		"Base name for output artifacts (default: the domain)")

	keyType := flag.String(
		"keyType",
		KEY_TYPE_DEFAULT,
		"Key algorithm for account and certificate keys (ecdsa or rsa)")

	skipDNSCheck := flag.Bool(
		"skipDnsCheck",
		false,
		"Skip the advisory TXT propagation lookup before validation")

	verbose := flag.Bool(
		"verbose",
		false,
		"Print HTTP request/response dumps")

	flag.Parse()

	conf, err := loadConfig(*configPath)
	cmd.FailOnError(err, "Unable to load config")

	acmeClient, err := client.New(client.Config{
		DirectoryURL: *directory,
		CACert:       *caCert,
		Verbose:      *verbose,
	})
	cmd.FailOnError(err, "Unable to create ACME client")

	opts := []issuer.Option{}
	if !*skipDNSCheck {
		opts = append(opts, issuer.WithPropagationCheck(func(fqdn, value string) (bool, error) {
			return dns01.CheckPropagation(fqdn, value, nil)
		}))
	}

	orch, err := issuer.New(acmeClient, terminalPrompter{}, issuer.Config{
		Domain:      conf.Domain,
		NotifyEmail: conf.NotifyEmail,
		PFXPassword: conf.PFXPassword,
		Country:     conf.CountryName,
		Province:    conf.State,
		Locality:    conf.Locality,
		KeyType:     *keyType,
	}, opts...)
	cmd.FailOnError(err, "Unable to create orchestrator")

	ctx, stop := cmd.SignalContext()
	defer stop()

	result, err := orch.Run(ctx)
	cmd.FailOnError(err, "Issuance failed")

	artifacts, err := bundle.Encode(result.ChainPEM, result.CertificateKey, conf.PFXPassword)
	cmd.FailOnError(err, "Unable to encode artifacts")

	base := *outBase
	if base == "" {
		base = dns01.StripWildcard(result.Domain)
	}

	// Artifacts are only written after the full chain is issued; a failed
	// run leaves nothing behind.
	writes := []struct {
		suffix string
		data   []byte
		perm   os.FileMode
	}{
		{bundle.CABundleSuffix, artifacts.CABundle, 0644},
		{bundle.CertSuffix, artifacts.Certificate, 0644},
		{bundle.PrivateKeySuffix, artifacts.PrivateKey, 0600},
		{bundle.PFXSuffix, artifacts.PFX, 0600},
	}
	for _, w := range writes {
		if w.data == nil {
			continue
		}
		err := cmd.WriteFileAtomic(base+w.suffix, w.data, w.perm)
		cmd.FailOnError(err, "Unable to write "+base+w.suffix)
		log.Printf("Wrote %s\n", base+w.suffix)
	}

	color.New(color.FgGreen, color.Bold).Printf("Issued certificate for %s\n", result.Domain)
}
