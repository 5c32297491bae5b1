package dispatch

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ligun0805/faucet-sender/internal/chain"
	"github.com/ligun0805/faucet-sender/internal/notify"
)

// Messages use Telegram HTML markup.

func code(s string) string { return "<code>" + html.EscapeString(s) + "</code>" }

func underfundedMessage(sender string, balance decimal.Decimal, symbol string) string {
	return fmt.Sprintf("%s\nSender %s has %s and is excluded from this run.",
		notify.Bold("Insufficient balance"), code(sender), html.EscapeString(chain.FormatAmount(balance, symbol)))
}

func failuresMessage(sender string, n int) string {
	return fmt.Sprintf("%s\n%s failed %d transfers in a row and is excluded from this run.",
		notify.Bold("Sender disabled"), code(sender), n)
}

func sentMessage(sender, to string, amount decimal.Decimal, symbol, txID, explorer string, sent, target int) string {
	var b strings.Builder
	b.WriteString(notify.Bold(fmt.Sprintf("Transfer %d/%d sent", sent, target)) + "\n")
	fmt.Fprintf(&b, "From: %s\nTo: %s\nAmount: %s\n", code(sender), code(to), html.EscapeString(chain.FormatAmount(amount, symbol)))
	if link := explorerLink(explorer, txID); link != "" {
		fmt.Fprintf(&b, `Tx: <a href="%s">%s</a>`, html.EscapeString(link), html.EscapeString(txID))
	} else {
		fmt.Fprintf(&b, "Tx: %s", code(txID))
	}
	return b.String()
}

func summaryMessage(sender string, sent int) string {
	return fmt.Sprintf("%s\nSender %s sent %s transfers.", notify.Bold("Run finished"), code(sender), notify.Bold(strconv.Itoa(sent)))
}

// explorerLink substitutes txID into a "%s" template, or appends it to a prefix.
func explorerLink(tmpl, txID string) string {
	if tmpl == "" || txID == "" {
		return ""
	}
	if strings.Contains(tmpl, "%s") {
		return strings.Replace(tmpl, "%s", txID, 1)
	}
	return tmpl + txID
}
