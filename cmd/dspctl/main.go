// Command dspctl is the operator CLI for a running dspd instance, built
// the way estuary-flow/authn's own cmdToken subcommand mints test
// credentials: a go-flags command per operation, each loading just the
// configuration it needs rather than the full server dependency graph.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"github.com/dspconnect/core/peerauth"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

type cmdToken struct {
	KeysPath    string        `long:"keys-path" env:"KEYS_PATH" required:"t" description:"Directory holding the PeerAuth signing key material"`
	Issuer      string        `long:"issuer" required:"t" description:"Issuer name to embed in the token, matching the serving connector's host address"`
	Participant string        `long:"participant" required:"t" description:"Participant URN the token authenticates"`
	Process     string        `long:"process" description:"Process URN to scope the token to, if any"`
	TTL         time.Duration `long:"ttl" default:"5m" description:"Token lifetime"`
}

func (cmd *cmdToken) Execute(args []string) error {
	key, err := peerauth.LoadSigningKey(cmd.KeysPath)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}
	issuer := peerauth.NewIssuer(key, cmd.Issuer)

	participantId, err := urnParticipant(cmd.Participant)
	if err != nil {
		return err
	}

	var processIdPtr = processPtr(cmd.Process)
	token, err := issuer.Issue(participantId, processIdPtr, cmd.TTL)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	fmt.Println(token)
	return nil
}

type cmdNegotiate struct {
	ConnectorAddress string `long:"connector" required:"t" description:"Base address of the connector's dspd server"`
	Provider         string `long:"provider" required:"t" description:"Provider participant URN to open a negotiation with"`
	OfferFile        string `long:"offer-file" required:"t" description:"Path to a JSON offer document"`
}

func (cmd *cmdNegotiate) Execute(args []string) error {
	raw, err := readFile(cmd.OfferFile)
	if err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		ProviderParticipant string          `json:"providerParticipant"`
		Offer               json.RawMessage `json:"offer"`
	}{ProviderParticipant: cmd.Provider, Offer: raw})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	return postAndPrint(cmd.ConnectorAddress+"/rpc/negotiations/start", body)
}

type cmdTransfer struct {
	ConnectorAddress string `long:"connector" required:"t" description:"Base address of the connector's dspd server"`
	Provider         string `long:"provider" required:"t" description:"Provider participant URN to request a transfer from"`
	AgreementId      string `long:"agreement" required:"t" description:"Sealed agreement URN authorizing the transfer"`
	Protocol         string `long:"protocol" default:"HTTP" description:"Wire protocol of the requested Format"`
	Action           string `long:"action" default:"Pull" choice:"Pull" choice:"Push" description:"Direction of the requested Format"`
	CallbackAddress  string `long:"callback" required:"t" description:"Address the provider should reach this connector at"`
}

func (cmd *cmdTransfer) Execute(args []string) error {
	body, err := json.Marshal(struct {
		ProviderParticipant string `json:"providerParticipant"`
		AgreementId         string `json:"agreementId"`
		Format              struct {
			Protocol string `json:"protocol"`
			Action   string `json:"action"`
		} `json:"format"`
		CallbackAddress string `json:"callbackAddress"`
	}{
		ProviderParticipant: cmd.Provider,
		AgreementId:         cmd.AgreementId,
		CallbackAddress:     cmd.CallbackAddress,
		Format: struct {
			Protocol string `json:"protocol"`
			Action   string `json:"action"`
		}{Protocol: cmd.Protocol, Action: cmd.Action},
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	return postAndPrint(cmd.ConnectorAddress+"/rpc/transfers/request", body)
}

func postAndPrint(url string, body []byte) error {
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatching request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		fmt.Println(red(fmt.Sprintf("connector returned %d: %s", resp.StatusCode, respBody)))
		return fmt.Errorf("connector returned %d: %s", resp.StatusCode, respBody)
	}
	fmt.Println(green(string(respBody)))
	return nil
}

func main() {
	parser := flags.NewParser(nil, flags.Default)
	var err error

	_, err = parser.AddCommand("token", "Mint a peer-auth bearer token", "Mint a peer-auth bearer token for testing against a dspd instance", new(cmdToken))
	if err != nil {
		log.Fatal(err)
	}
	_, err = parser.AddCommand("negotiate", "Open a contract negotiation", "Open a contract negotiation as Consumer against a named provider", new(cmdNegotiate))
	if err != nil {
		log.Fatal(err)
	}
	_, err = parser.AddCommand("transfer", "Request a transfer", "Open a transfer process as Consumer against a sealed agreement", new(cmdTransfer))
	if err != nil {
		log.Fatal(err)
	}

	if _, err = parser.Parse(); err == nil {
		// Success.
	} else if _, ok := err.(*flags.Error); ok {
		// go-flags already printed a notification.
	} else {
		log.Fatal(err)
	}
}
