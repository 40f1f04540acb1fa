package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mstgnz/telepay/infra/config"
	"github.com/mstgnz/telepay/signer"
	"github.com/spf13/cobra"
)

type signOptions struct {
	keyPath string
	params  string
}

func newSignCommand() *cobra.Command {
	o := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Canonicalize and sign a JSON parameter object",
		Long: `Sign prints the canonical string and the RSA-PSS signature of a parameter set.
Without --key the key is resolved from TELEBIRR_PRIVATE_KEY or TELEBIRR_PRIVATE_KEY_PATH.`,
		Example: `  telepay sign --key private.pem --params '{"appid":"A","method":"payment.queryorder"}'
  echo '{"appid":"A"}' | telepay sign --params -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(o.params, cmd.InOrStdin())
			if err != nil {
				return err
			}

			pem, err := loadPrivateKey(o.keyPath)
			if err != nil {
				return err
			}

			sig, err := signer.Sign(params, pem)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"canonical": signer.Canonicalize(params),
				"sign":      sig,
				"sign_type": signer.SignType,
			})
		},
	}

	cmd.Flags().StringVar(&o.keyPath, "key", "", "path to the PEM private key")
	cmd.Flags().StringVar(&o.params, "params", "", "JSON object to sign, - reads stdin")
	_ = cmd.MarkFlagRequired("params")
	return cmd
}

type verifyOptions struct {
	publicKeyPath string
	params        string
	sign          string
}

func newVerifyCommand() *cobra.Command {
	o := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature over a JSON parameter object",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(o.params, cmd.InOrStdin())
			if err != nil {
				return err
			}

			pub, err := os.ReadFile(o.publicKeyPath)
			if err != nil {
				return fmt.Errorf("read public key: %w", err)
			}

			if err := signer.Verify(params, o.sign, string(pub)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&o.publicKeyPath, "pub", "", "path to the PEM public key")
	cmd.Flags().StringVar(&o.params, "params", "", "JSON object that was signed, - reads stdin")
	cmd.Flags().StringVar(&o.sign, "sign", "", "base64 signature")
	_ = cmd.MarkFlagRequired("pub")
	_ = cmd.MarkFlagRequired("params")
	_ = cmd.MarkFlagRequired("sign")
	return cmd
}

func readParams(raw string, stdin io.Reader) (signer.Params, error) {
	data := []byte(raw)
	if raw == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("read params: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var params signer.Params
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	return params, nil
}

func loadPrivateKey(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read private key: %w", err)
		}
		return string(data), nil
	}

	pem, ok := config.ResolvePrivateKey(config.GatewayConfig{
		PrivateKey:     config.GetEnv("TELEBIRR_PRIVATE_KEY", ""),
		PrivateKeyPath: config.GetEnv("TELEBIRR_PRIVATE_KEY_PATH", ""),
	})
	if !ok {
		return "", errors.New("no private key: pass --key or set TELEBIRR_PRIVATE_KEY")
	}
	return pem, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
