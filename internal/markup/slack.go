// Package markup converts model-generated Markdown into Slack mrkdwn.
package markup

import "regexp"

var (
	headingRe = regexp.MustCompile(`###\s*(.*)`)
	bulletRe  = regexp.MustCompile(`(?m)^-\s`)
	boldRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	residueRe = regexp.MustCompile("[#_`]")
)

// ToSlack rewrites common Markdown constructs into their Slack mrkdwn
// equivalents: "### heading" becomes "*heading*", leading "- " list markers
// become bullet glyphs, "**bold**" folds to "*bold*", and any remaining
// unsupported marker characters (#, _, backtick) are stripped. The rules
// run in that order, so the final strip also removes markers left over or
// introduced by the earlier steps.
func ToSlack(text string) string {
	text = headingRe.ReplaceAllString(text, "*$1*")
	text = bulletRe.ReplaceAllString(text, "• ")
	text = boldRe.ReplaceAllString(text, "*$1*")
	return residueRe.ReplaceAllString(text, "")
}
