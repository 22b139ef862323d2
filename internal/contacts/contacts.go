// Package contacts reads the device address book configured per account: a
// CSV file of name,phone rows. Entries are transient input for contact
// import and never persisted.
package contacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/recado-app/recado/internal/model"
)

// LoadAddressBook parses the CSV at path into device contacts. Rows are
// name,phone; a header row named "name" is skipped. Duplicate phone numbers
// keep the first entry. Rows without a phone number are dropped.
func LoadAddressBook(path string) ([]model.DeviceContact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open address book: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse address book: %w", err)
	}

	seen := make(map[string]bool)
	var contacts []model.DeviceContact
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		phone := NormalizePhone(row[1])
		if i == 0 && strings.EqualFold(name, "name") {
			continue
		}
		if phone == "" || seen[phone] {
			continue
		}
		seen[phone] = true
		contacts = append(contacts, model.DeviceContact{Name: name, PhoneNumber: phone})
	}
	return contacts, nil
}

// NormalizePhone strips formatting characters so numbers compare by digits.
// A leading '+' is kept.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
