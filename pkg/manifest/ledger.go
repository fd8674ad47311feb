package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ComponentsFile is the ledger at the package root.
const ComponentsFile = "components"

// AppendComponent records id at the end of the package's components ledger,
// creating the ledger if needed. Duplicates are kept.
func AppendComponent(root, id string) error {
	f, err := os.OpenFile(filepath.Join(root, ComponentsFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open components ledger")
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to append component")
	}
	return errors.Wrap(f.Close(), "failed to close components ledger")
}

// Components returns the ledger entries in order.
func Components(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, ComponentsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read components ledger")
	}
	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}
