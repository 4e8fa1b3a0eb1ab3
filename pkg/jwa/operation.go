package jwa

import "fmt"

// Operation is one of the five operations an algorithm can be registered for.
type Operation uint8

const (
	OperationSign Operation = iota + 1
	OperationVerify
	OperationEncrypt
	OperationDecrypt
	OperationImportKey
)

var operationNames = [...]string{
	OperationSign:      "sign",
	OperationVerify:    "verify",
	OperationEncrypt:   "encrypt",
	OperationDecrypt:   "decrypt",
	OperationImportKey: "importKey",
}

// Operations lists every valid operation.
func Operations() []Operation {
	return []Operation{OperationSign, OperationVerify, OperationEncrypt, OperationDecrypt, OperationImportKey}
}

// Valid reports whether o is one of the recognized operations.
func (o Operation) Valid() bool {
	return o >= OperationSign && o <= OperationImportKey
}

func (o Operation) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Operation(%d)", uint8(o))
	}
	return operationNames[o]
}

// ParseOperation returns the operation with the given name.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations() {
		if op.String() == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, name)
}
