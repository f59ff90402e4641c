package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"promisevault/crypto"
)

// InstructionKind identifies the operation carried by an instruction.
type InstructionKind uint8

const (
	InstrNativeTransfer InstructionKind = 0x01 // Move native deposit currency between accounts

	InstrCustodyInitAccount       InstructionKind = 0x10
	InstrCustodyMintTo            InstructionKind = 0x11
	InstrCustodyTransfer          InstructionKind = 0x12
	InstrCustodyApprove           InstructionKind = 0x13
	InstrCustodyRevoke            InstructionKind = 0x14
	InstrCustodySetCloseAuthority InstructionKind = 0x15
	InstrCustodyCloseAccount      InstructionKind = 0x16

	InstrTreasuryOpen         InstructionKind = 0x20
	InstrTreasurySetAdmin     InstructionKind = 0x21
	InstrTreasurySetStartTime InstructionKind = 0x22
	InstrTreasuryClose        InstructionKind = 0x23

	InstrPromiseOpen      InstructionKind = 0x30
	InstrPromiseSetAmount InstructionKind = 0x31
	InstrPromiseClaim     InstructionKind = 0x32
	InstrPromiseClose     InstructionKind = 0x33
)

var instructionNames = map[InstructionKind]string{
	InstrNativeTransfer:           "native.transfer",
	InstrCustodyInitAccount:       "custody.init_account",
	InstrCustodyMintTo:            "custody.mint_to",
	InstrCustodyTransfer:          "custody.transfer",
	InstrCustodyApprove:           "custody.approve",
	InstrCustodyRevoke:            "custody.revoke",
	InstrCustodySetCloseAuthority: "custody.set_close_authority",
	InstrCustodyCloseAccount:      "custody.close_account",
	InstrTreasuryOpen:             "treasury.open",
	InstrTreasurySetAdmin:         "treasury.set_admin",
	InstrTreasurySetStartTime:     "treasury.set_start_time",
	InstrTreasuryClose:            "treasury.close",
	InstrPromiseOpen:              "promise.open",
	InstrPromiseSetAmount:         "promise.set_amount",
	InstrPromiseClaim:             "promise.claim",
	InstrPromiseClose:             "promise.close",
}

func (k InstructionKind) String() string {
	if name, ok := instructionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(k))
}

// Valid reports whether k is a known instruction.
func (k InstructionKind) Valid() bool {
	_, ok := instructionNames[k]
	return ok
}

// Instruction is one operation inside a transaction. Data holds the RLP
// encoding of the payload struct matching Kind.
type Instruction struct {
	Kind InstructionKind `json:"kind"`
	Data []byte          `json:"data"`
}

// NewInstruction RLP-encodes payload under kind.
func NewInstruction(kind InstructionKind, payload interface{}) (Instruction, error) {
	if !kind.Valid() {
		return Instruction{}, fmt.Errorf("types: unknown instruction kind 0x%02x", uint8(kind))
	}
	data, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return Instruction{}, fmt.Errorf("types: encode %s: %w", kind, err)
	}
	return Instruction{Kind: kind, Data: data}, nil
}

// Decode unpacks the instruction payload into out.
func (i Instruction) Decode(out interface{}) error {
	if err := rlp.DecodeBytes(i.Data, out); err != nil {
		return fmt.Errorf("types: decode %s: %w", i.Kind, err)
	}
	return nil
}

var (
	ErrMissingSignature = errors.New("types: transaction is not signed")
	ErrNoInstructions   = errors.New("types: transaction carries no instructions")
)

// MaxInstructions bounds a single transaction.
const MaxInstructions = 32

// Transaction is an atomic list of instructions authorised by one signer.
type Transaction struct {
	ChainID      uint64        `json:"chainId"`
	Nonce        uint64        `json:"nonce"`
	Instructions []Instruction `json:"instructions"`

	// Signature
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *crypto.Address
}

type unsignedTx struct {
	ChainID      uint64
	Nonce        uint64
	Instructions []Instruction
}

// Hash is keccak256 over the RLP encoding of the unsigned fields.
func (tx *Transaction) Hash() ([]byte, error) {
	b, err := rlp.EncodeToBytes(unsignedTx{ChainID: tx.ChainID, Nonce: tx.Nonce, Instructions: tx.Instructions})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}

// Sign signs the transaction with key and clears any cached sender.
func (tx *Transaction) Sign(key *crypto.PrivateKey) error {
	if key == nil {
		return errors.New("types: nil signing key")
	}
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(hash)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address from the signature. The result is cached.
func (tx *Transaction) From() (crypto.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return crypto.Address{}, ErrMissingSignature
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.BitLen() > 8 || tx.V.Uint64() < 27 {
		return crypto.Address{}, errors.New("types: malformed signature")
	}
	hash, err := tx.Hash()
	if err != nil {
		return crypto.Address{}, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	addr, err := crypto.RecoverAddress(hash, sig)
	if err != nil {
		return crypto.Address{}, err
	}
	tx.from = &addr
	return addr, nil
}

// Validate checks structural limits that do not need state.
func (tx *Transaction) Validate() error {
	if len(tx.Instructions) == 0 {
		return ErrNoInstructions
	}
	if len(tx.Instructions) > MaxInstructions {
		return fmt.Errorf("types: %d instructions exceeds limit %d", len(tx.Instructions), MaxInstructions)
	}
	for i, instr := range tx.Instructions {
		if !instr.Kind.Valid() {
			return fmt.Errorf("types: instruction %d: unknown kind 0x%02x", i, uint8(instr.Kind))
		}
	}
	return nil
}
