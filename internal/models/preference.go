package models

import "strings"

// Preference stores the process-wide monitoring preferences.
// There should only ever be one row in this table.
type Preference struct {
	ID               uint    `gorm:"primarykey"`
	ActiveSymbols    string  // comma-separated symbol list
	WarningThreshold float64 `gorm:"not null"`
	UrgentThreshold  float64 `gorm:"not null"`
	ChannelChatID    int64
}

// SymbolList splits the stored symbol string into a slice.
func (p *Preference) SymbolList() []string {
	if p.ActiveSymbols == "" {
		return nil
	}
	return strings.Split(p.ActiveSymbols, ",")
}

// SetSymbolList joins a symbol slice into the stored string form.
func (p *Preference) SetSymbolList(symbols []string) {
	p.ActiveSymbols = strings.Join(symbols, ",")
}
