package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

const ReceiptFileName = "INSTALL_RECEIPT.json"

type ReceiptFileAdapter struct{}

func NewReceiptFileAdapter() ReceiptFileAdapter {
	return ReceiptFileAdapter{}
}

func ReceiptPath(prefix string) string {
	return filepath.Join(prefix, ReceiptFileName)
}

func (a ReceiptFileAdapter) WriteReceipt(receipt types.InstallReceipt) error {
	if strings.TrimSpace(receipt.Prefix) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("receipt prefix is empty")
	}
	if err := os.MkdirAll(receipt.Prefix, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create prefix directory").
			WithCause(err)
	}
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode install receipt").
			WithCause(err)
	}
	return writeFileAtomic(ReceiptPath(receipt.Prefix), append(data, '\n'), 0o644)
}

func (a ReceiptFileAdapter) ReadReceipt(prefix string) (types.InstallReceipt, error) {
	path := ReceiptPath(prefix)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.InstallReceipt{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no install receipt in %s", prefix)).
			WithCause(err)
	}
	if err != nil {
		return types.InstallReceipt{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read install receipt").
			WithCause(err)
	}
	var receipt types.InstallReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return types.InstallReceipt{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("install receipt is not valid JSON: %s", path)).
			WithCause(err)
	}
	return receipt, nil
}

func (a ReceiptFileAdapter) RemoveReceipt(prefix string) error {
	if err := os.Remove(ReceiptPath(prefix)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to remove install receipt").
			WithCause(err)
	}
	return nil
}

var _ ports.ReceiptPort = ReceiptFileAdapter{}
