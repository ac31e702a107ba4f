package pipeline

import (
	"fmt"
	"strings"
)

const (
	TypeIllumina   = "illumina"
	TypeIonTorrent = "iontorrent"
	TypeITS        = "its"
	TypeBarcode    = "barcode"
	TypeDefault    = "default"
)

var typeAliases = map[string]string{
	TypeIllumina:   TypeIllumina,
	"16s":          TypeIllumina,
	TypeIonTorrent: TypeIonTorrent,
	TypeITS:        TypeITS,
	"fungi":        TypeITS,
	TypeBarcode:    TypeBarcode,
	"barcodes":     TypeBarcode,
	TypeDefault:    TypeDefault,
}

type UnknownTypeError struct{ Type string }

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown pipeline type %q", e.Type)
}

// ParseType resolves a user-supplied pipeline type (case-insensitive, aliases allowed)
// to its canonical name.
func ParseType(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := typeAliases[key]; ok {
		return canonical, nil
	}
	return "", &UnknownTypeError{Type: raw}
}

func Types() []string {
	return []string{TypeIllumina, TypeIonTorrent, TypeITS, TypeBarcode, TypeDefault}
}
