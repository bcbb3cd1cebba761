package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"socialgraph.relay/sgr/internal/identity"
	"socialgraph.relay/sgr/internal/ledger"
	"socialgraph.relay/sgr/internal/program"
)

const requestTimeout = 30 * time.Second

// txOptions are shared by every tx subcommand.
type txOptions struct {
	keyFile   string
	blockhash string
	server    string
}

func (o *txOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.keyFile, "key", "wallet.json", "wallet key file (Solana keygen JSON or PEM)")
	cmd.Flags().StringVar(&o.blockhash, "blockhash", "", "blockhash to sign against; fetched when empty")
	cmd.Flags().StringVar(&o.server, "server", "", "relay base URL; when set the body is submitted and the response printed")
}

func newTxCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Build, sign and optionally submit program transactions",
	}
	cmd.AddCommand(newTxRegisterCommand(a), newTxSendCommand(a), newTxAcceptCommand(a))
	return cmd
}

func newTxRegisterCommand(a *app) *cobra.Command {
	var opts txOptions
	var args program.CreateProfileArgs
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Sign create_profile and print the /api/transactions/submit body",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			wallet, bh, err := a.prepare(ctx, &opts)
			if err != nil {
				return err
			}
			signed, err := program.SignedCreateProfile(a.programID(), bh, wallet.PrivateKey(), args)
			if err != nil {
				return err
			}
			body := map[string]string{
				"transaction":      encodeTx(signed),
				"name":             args.Name,
				"bio":              args.Bio,
				"avatar":           args.Avatar,
				"profilePublicKey": signed.Account.String(),
				"phantomAddress":   wallet.Address(),
			}
			return emit(ctx, cmd.OutOrStdout(), opts.server, "/api/transactions/submit", body)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&args.Name, "name", "", "display name")
	cmd.Flags().StringVar(&args.Bio, "bio", "", "profile bio")
	cmd.Flags().StringVar(&args.Avatar, "avatar", "", "avatar URI")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTxSendCommand(a *app) *cobra.Command {
	var opts txOptions
	var to string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign send_friend_request and print the /api/send-friend-request body",
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipient, err := solana.PublicKeyFromBase58(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			wallet, bh, err := a.prepare(ctx, &opts)
			if err != nil {
				return err
			}
			signed, err := program.SignedSendFriendRequest(a.programID(), bh, wallet.PrivateKey(), recipient)
			if err != nil {
				return err
			}
			body := map[string]string{
				"from":             wallet.Address(),
				"to":               recipient.String(),
				"transaction":      encodeTx(signed),
				"requestPublicKey": signed.Account.String(),
			}
			return emit(ctx, cmd.OutOrStdout(), opts.server, "/api/send-friend-request", body)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "recipient wallet address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTxAcceptCommand(a *app) *cobra.Command {
	var opts txOptions
	var from, requestID string
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Sign accept_friend_request and print the /api/accept-friend-request body",
		RunE: func(cmd *cobra.Command, _ []string) error {
			requester, err := solana.PublicKeyFromBase58(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			wallet, bh, err := a.prepare(ctx, &opts)
			if err != nil {
				return err
			}
			signed, err := program.SignedAcceptFriendRequest(a.programID(), bh, wallet.PrivateKey(), requester, requestID)
			if err != nil {
				return err
			}
			body := map[string]string{
				"requestId":   requestID,
				"transaction": encodeTx(signed),
			}
			return emit(ctx, cmd.OutOrStdout(), opts.server, "/api/accept-friend-request", body)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&from, "from", "", "wallet address that sent the request")
	cmd.Flags().StringVar(&requestID, "request-id", "", "friend request id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("request-id")
	return cmd
}

func (a *app) programID() solana.PublicKey {
	id, err := a.cfg.Program()
	if err != nil || id.IsZero() {
		return program.DefaultProgramID
	}
	return id
}

// prepare loads the wallet and resolves the blockhash: the flag, else the
// relay's ledger when --server is set, else the configured RPC endpoint.
func (a *app) prepare(ctx context.Context, opts *txOptions) (*identity.Identity, solana.Hash, error) {
	wallet, err := identity.LoadOrCreateIdentity(opts.keyFile)
	if err != nil {
		return nil, solana.Hash{}, fmt.Errorf("load wallet %s: %w", opts.keyFile, err)
	}

	switch {
	case opts.blockhash != "":
		bh, err := solana.HashFromBase58(opts.blockhash)
		if err != nil {
			return nil, solana.Hash{}, fmt.Errorf("--blockhash: %w", err)
		}
		return wallet, bh, nil
	case opts.server != "":
		bh, err := fetchBlockhash(ctx, opts.server)
		return wallet, bh, err
	default:
		bh, err := ledger.NewRPCClient(a.cfg.RPCURL, a.cfg.CommitmentState()).LatestBlockhash(ctx)
		if err != nil {
			return nil, solana.Hash{}, fmt.Errorf("fetch blockhash from %s: %w", a.cfg.RPCURL, err)
		}
		return wallet, bh, nil
	}
}

func encodeTx(s program.Signed) string {
	return base64.StdEncoding.EncodeToString(s.Payload)
}

func fetchBlockhash(ctx context.Context, server string) (solana.Hash, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/api/blockhash", nil)
	if err != nil {
		return solana.Hash{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("fetch blockhash: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Blockhash string `json:"blockhash"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return solana.Hash{}, fmt.Errorf("decode blockhash response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return solana.Hash{}, fmt.Errorf("fetch blockhash: %s (%d)", body.Error, resp.StatusCode)
	}
	return solana.HashFromBase58(body.Blockhash)
}

// emit prints body, or posts it to server and prints the response.
func emit(ctx context.Context, out io.Writer, server, path string, body map[string]string) error {
	if server == "" {
		return printJSON(out, body)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, respBody, "", "  ") == nil {
		respBody = append(pretty.Bytes(), '\n')
	}
	if _, err := out.Write(respBody); err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New(resp.Status)
	}
	return nil
}
