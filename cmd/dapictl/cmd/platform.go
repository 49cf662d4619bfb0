package cmd

import (
	"fmt"
	"os"

	"dapi-grpc/client"
	"dapi-grpc/message"

	"github.com/spf13/cobra"
)

func newApplyStateTransitionCmd(g *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply-state-transition [state-transition]",
		Short: "Submit a serialized state transition",
		Long: `Submits a serialized state transition given as an argument or read
from --file.

Examples:
  dapictl apply-state-transition a4006b...
  dapictl apply-state-transition --file st.bin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				st  []byte
				err error
			)
			switch {
			case file != "" && len(args) > 0:
				return fmt.Errorf("give the state transition as an argument or with --file, not both")
			case file != "":
				st, err = os.ReadFile(file)
			case len(args) == 1:
				st, err = parseBytes(args[0])
			default:
				return fmt.Errorf("missing state transition")
			}
			if err != nil {
				return err
			}
			return runCall(cmd, g, "", (*client.Client).ApplyStateTransition, &message.ApplyStateTransitionRequest{StateTransition: st})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the raw state transition from a file")
	return cmd
}

func newGetIdentityCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get-identity <id>",
		Short: "Fetch an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, g, args[0], (*client.Client).GetIdentity, &message.GetIdentityRequest{Id: args[0]})
		},
	}
}

func newGetDataContractCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get-data-contract <id>",
		Short: "Fetch a data contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, g, args[0], (*client.Client).GetDataContract, &message.GetDataContractRequest{Id: args[0]})
		},
	}
}

func newGetDocumentsCmd(g *globalOptions) *cobra.Command {
	var (
		where, orderBy      string
		limit               uint32
		startAt, startAfter uint32
	)
	cmd := &cobra.Command{
		Use:   "get-documents <contract-id> <document-type>",
		Short: "Query documents of a data contract",
		Long: `Queries documents of one type. --where and --order-by take the CBOR
encoded clauses. --start-at and --start-after are mutually exclusive.

Examples:
  dapictl get-documents <contract-id> note --limit 10
  dapictl get-documents <contract-id> note --where 81836324... --start-after 20`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &message.GetDocumentsRequest{
				DataContractId: args[0],
				DocumentType:   args[1],
				Limit:          limit,
			}
			var err error
			if where != "" {
				if req.Where, err = parseBytes(where); err != nil {
					return err
				}
			}
			if orderBy != "" {
				if req.OrderBy, err = parseBytes(orderBy); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("start-at") {
				req.StartAt = &startAt
			}
			if cmd.Flags().Changed("start-after") {
				req.StartAfter = &startAfter
			}
			return runCall(cmd, g, args[0], (*client.Client).GetDocuments, req)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "CBOR where clause")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "CBOR order by clause")
	cmd.Flags().Uint32Var(&limit, "limit", 0, "maximum number of documents")
	cmd.Flags().Uint32Var(&startAt, "start-at", 0, "position of the first document")
	cmd.Flags().Uint32Var(&startAfter, "start-after", 0, "position after which to start")
	cmd.MarkFlagsMutuallyExclusive("start-at", "start-after")
	return cmd
}

func newGetIdentityByKeyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get-identity-by-key <public-key-hash>",
		Short: "Fetch the identity owning a first public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseBytes(args[0])
			if err != nil {
				return err
			}
			return runCall(cmd, g, args[0], (*client.Client).GetIdentityByFirstPublicKey, &message.GetIdentityByFirstPublicKeyRequest{PublicKeyHash: hash})
		},
	}
}

func newGetIdentityIdByKeyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get-identity-id-by-key <public-key-hash>",
		Short: "Fetch the id of the identity owning a first public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseBytes(args[0])
			if err != nil {
				return err
			}
			return runCall(cmd, g, args[0], (*client.Client).GetIdentityIdByFirstPublicKey, &message.GetIdentityIdByFirstPublicKeyRequest{PublicKeyHash: hash})
		},
	}
}
