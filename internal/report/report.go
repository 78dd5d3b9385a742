// Package report renders the HTML messages sent to the channel: startup
// banner, market reports, per-tier alerts and the news digest. All dynamic
// text is HTML-escaped before interpolation.
package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/infra/market"
)

// Truncation limits matching the channel's message layout.
const (
	alertBodyLimit   = 220
	digestTitleLimit = 110
	digestBodyLimit  = 160

	truncationMark = "…"
)

// tierStyle is the icon and label shown in an alert header.
type tierStyle struct {
	icon  string
	label string
}

var tierStyles = map[entity.ImportanceTier]tierStyle{
	entity.TierUrgentPerson: {icon: "🚨", label: "URGENT PERSON ALERT"},
	entity.TierInstitution:  {icon: "🏦", label: "INSTITUTIONAL"},
	entity.TierMacro:        {icon: "📊", label: "MACRO EVENT"},
}

// StartupBanner renders the message sent once when the bot boots.
func StartupBanner(now time.Time) string {
	return fmt.Sprintf(
		"✅ <b>MARKETPULSE BOT — STARTED</b>\n"+
			"────────────────────────────────\n\n"+
			"⏰ %s — system operational\n"+
			"• Scheduled market reports\n"+
			"• Priority news alerts\n"+
			"• Smart news scan",
		now.Format("02/01/2006 15:04"))
}

// CryptoReport renders the BTC/ETH/SOL snapshot with an overall trend line.
func CryptoReport(now time.Time, btc, eth, sol market.Quote) string {
	trend := "🔴 Bearish"
	if (btc.Change24h+eth.Change24h+sol.Change24h)/3 > 0 {
		trend = "🟢 Bullish"
	}

	return fmt.Sprintf(
		"<b>📊 CRYPTO REPORT — %s</b>\n"+
			"────────────────────────────────\n\n"+
			"🟠 <b>BITCOIN</b>\n"+
			"• Price: <b>$%s</b>\n"+
			"• 24h: <b>%+.2f%%</b>\n"+
			"• Volume: $%s\n\n"+
			"🔷 <b>ETHEREUM</b>\n"+
			"• Price: <b>$%s</b>\n"+
			"• 24h: <b>%+.2f%%</b>\n"+
			"• Volume: $%s\n\n"+
			"🟣 <b>SOLANA</b>\n"+
			"• Price: <b>$%s</b>\n"+
			"• 24h: <b>%+.2f%%</b>\n"+
			"• Volume: $%s\n\n"+
			"📈 <b>Trend</b>: %s",
		now.Format("02/01/2006 15:04"),
		commaInt(btc.Price), btc.Change24h, billions(btc.Volume24h),
		commaInt(eth.Price), eth.Change24h, billions(eth.Volume24h),
		commaFloat(sol.Price), sol.Change24h, billions(sol.Volume24h),
		trend)
}

// ForexReport renders the EUR/USD and gold snapshot.
func ForexReport(fx market.ForexQuote, gold market.Quote) string {
	return fmt.Sprintf(
		"<b>💱 TRADITIONAL MARKETS</b>\n"+
			"──────────────────────────\n\n"+
			"💶 <b>EUR/USD</b>\n"+
			"• Rate: <b>%.4f</b>\n"+
			"• 24h: <b>%+.2f%%</b>\n\n"+
			"🥇 <b>GOLD</b>\n"+
			"• Price: <b>$%s</b>\n"+
			"• 24h: <b>%+.2f%%</b>",
		fx.Rate, fx.Change24h,
		commaFloat(gold.Price), gold.Change24h)
}

// Alert renders a single priority record. The tier determines the header
// icon and label; unknown tiers fall back to the macro style.
func Alert(record *entity.NewsRecord, now time.Time) string {
	style, ok := tierStyles[record.Importance]
	if !ok {
		style = tierStyles[entity.TierMacro]
	}

	return fmt.Sprintf(
		"%s <b>%s</b>\n"+
			"────────────────────────\n\n"+
			"• %s\n\n"+
			"%s\n\n"+
			"⏰ %s",
		style.icon, style.label,
		html.EscapeString(displayTitle(record)),
		html.EscapeString(Truncate(displayBody(record), alertBodyLimit)),
		now.Format("15:04"))
}

// DigestEntry renders one lower-tier record as a numbered digest message.
// Entries are sent individually so the governor can pace and mark each one,
// with the index carrying the position within the cycle.
func DigestEntry(record *entity.NewsRecord, index int, now time.Time) string {
	title := Truncate(displayTitle(record), digestTitleLimit)
	body := Truncate(displayBody(record), digestBodyLimit)

	return fmt.Sprintf(
		"<b>📰 CRYPTO NEWS DIGEST</b>\n"+
			"────────────────────────\n\n"+
			"• <b>%d.</b> %s\n%s\n\n"+
			"⏰ Compiled %s",
		index, html.EscapeString(title), html.EscapeString(body),
		now.Format("15:04"))
}

// displayTitle prefers the translated title when one was stored.
func displayTitle(record *entity.NewsRecord) string {
	if record.TitleTranslated != "" {
		return record.TitleTranslated
	}
	return record.Title
}

func displayBody(record *entity.NewsRecord) string {
	if record.BodyTranslated != "" {
		return record.BodyTranslated
	}
	return record.Body
}

// Truncate caps text at limit runes, appending an ellipsis when cut.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncationMark
}

// billions formats a dollar volume as e.g. "28.5B".
func billions(v float64) string {
	return fmt.Sprintf("%.1fB", v/1_000_000_000)
}

// commaInt renders a price with thousands separators and no decimals.
func commaInt(v float64) string {
	n := int64(v + 0.5)
	s := fmt.Sprintf("%d", n)
	return insertCommas(s)
}

// commaFloat renders a price with thousands separators and two decimals.
func commaFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	parts := strings.SplitN(s, ".", 2)
	return insertCommas(parts[0]) + "." + parts[1]
}

func insertCommas(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
