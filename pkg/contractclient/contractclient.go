// Package contractclient provides an ABI-driven read/write binding over a
// single contract address: Call for view functions, Send for
// state-changing transactions, and ParseReceipt/DecodeTransaction for
// turning raw chain data back into named parameters. It stays generic over
// the ABI rather than generated per-contract, so the strategy execution
// core can bind it to pair contracts and the custody contract alike.
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// SendMode controls how a transaction is constructed.
type SendMode int

const (
	// Standard estimates gas automatically and signs a legacy (EIP-155)
	// transaction at the node's suggested gas price.
	Standard SendMode = iota
)

// ContractClient is the capability pkg/contractclient exposes: read via
// Call, write via Send, and decode via ParseReceipt/DecodeTransaction.
type ContractClient interface {
	ContractAddress() common.Address
	Abi() *abi.ABI
	Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error)
	Send(mode SendMode, gasLimit *uint64, value *big.Int, from *common.Address, key *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error)
	TransactionData(hash common.Hash) ([]byte, error)
	DecodeTransaction(data []byte) (*DecodedCall, error)
	ParseReceipt(receipt *TxReceipt) (string, error)
}

// DecodedCall is the result of decoding raw calldata against an ABI.
type DecodedCall struct {
	MethodName string                 `json:"MethodName"`
	Parameter  map[string]interface{} `json:"Parameter"`
}

// TxReceipt is the chain-agnostic receipt shape the rest of the core works
// with; pkg/txlistener converts a go-ethereum receipt into this shape so
// callers never import core/types directly.
type TxReceipt struct {
	TxHash            common.Hash
	Status            uint64
	GasUsed           string
	EffectiveGasPrice string
	Logs              []*types.Log
}

type client struct {
	eth     *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewContractClient builds a ContractClient bound to address, using abiDef
// for both call/send encoding and receipt/log decoding.
func NewContractClient(eth *ethclient.Client, address common.Address, abiDef abi.ABI) ContractClient {
	return &client{eth: eth, address: address, abi: abiDef}
}

func (c *client) ContractAddress() common.Address { return c.address }
func (c *client) Abi() *abi.ABI                    { return &c.abi }

func (c *client) Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call %s: %w", method, err)
	}
	if c.eth == nil {
		return nil, fmt.Errorf("call %s: no chain client configured", method)
	}

	msg := ethereumCallMsg(from, &c.address, input)
	out, err := c.eth.CallContract(context.Background(), msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s reverted: %w", method, err)
	}

	result, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack call %s: %w", method, err)
	}
	return result, nil
}

func (c *client) Send(mode SendMode, gasLimit *uint64, value *big.Int, from *common.Address, key *ecdsa.PrivateKey, method string, args ...interface{}) (common.Hash, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack send %s: %w", method, err)
	}

	txValue := big.NewInt(0)
	if value != nil {
		txValue = value
	}

	ctx := context.Background()
	nonce, err := c.eth.PendingNonceAt(ctx, *from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	callMsg := ethereumCallMsg(from, &c.address, input)
	callMsg.Value = txValue

	limit := uint64(300000)
	if gasLimit != nil {
		limit = *gasLimit
	} else {
		estimated, err := c.eth.EstimateGas(ctx, callMsg)
		if err == nil && estimated > 0 {
			limit = estimated
		}
	}

	chainID, err := c.eth.NetworkID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	tx := types.NewTransaction(nonce, c.address, txValue, limit, gasPrice, input)
	signer := types.NewEIP155Signer(chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit transaction: %w", err)
	}
	return signedTx.Hash(), nil
}

func (c *client) TransactionData(hash common.Hash) ([]byte, error) {
	tx, _, err := c.eth.TransactionByHash(context.Background(), hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", hash.Hex(), err)
	}
	return tx.Data(), nil
}

func (c *client) DecodeTransaction(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short to contain a method selector")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve method selector: %w", err)
	}
	values := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(values, data[4:]); err != nil {
		return nil, fmt.Errorf("failed to unpack calldata for %s: %w", method.Name, err)
	}
	return &DecodedCall{MethodName: method.Name, Parameter: values}, nil
}

func (c *client) ParseReceipt(receipt *TxReceipt) (string, error) {
	var events []map[string]interface{}
	for _, l := range receipt.Logs {
		event, err := c.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}
		values := make(map[string]interface{})
		if err := event.Inputs.UnpackIntoMap(values, l.Data); err != nil {
			continue
		}
		events = append(events, map[string]interface{}{
			"EventName": event.Name,
			"Parameter": values,
		})
	}
	out, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parsed events: %w", err)
	}
	return string(out), nil
}

func ethereumCallMsg(from, to *common.Address, data []byte) ethereum.CallMsg {
	msg := ethereum.CallMsg{To: to, Data: data}
	if from != nil {
		msg.From = *from
	}
	return msg
}
