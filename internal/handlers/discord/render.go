package discord

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KirkDiggler/gatherer/internal/models"
	"github.com/KirkDiggler/gatherer/internal/services/gathering"
	"github.com/bwmarrin/discordgo"
)

// maxEmbedFields is Discord's limit on fields per embed
const maxEmbedFields = 25

func timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

func renderGatheringCreated(g *models.Gathering) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Gathering scheduled",
		Description: fmt.Sprintf("Presence in <#%s> will be tracked.", g.ChannelID),
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Starts", Value: timestamp(g.StartAt), Inline: true},
			{Name: "Ends", Value: timestamp(g.EndAt), Inline: true},
			{Name: "Weight", Value: formatNumber(g.Weight), Inline: true},
			{Name: "Who", Value: gathering.EligibleRoles(g)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "ID " + g.ID},
	}
}

func renderGatheringList(summaries []*gathering.Summary) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Gatherings",
		Color: colorInfo,
	}
	if len(summaries) == 0 {
		embed.Description = "No gatherings scheduled yet. Use `/gathering create` to add one."
		return embed
	}

	for _, sm := range summaries {
		if len(embed.Fields) == maxEmbedFields {
			embed.Footer = &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("%d more not shown", len(summaries)-maxEmbedFields),
			}
			break
		}
		g := sm.Gathering
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%s (%s)", g.ID, g.Status),
			Value: fmt.Sprintf("<#%s> %s for %s\n%s",
				g.ChannelID, timestamp(g.StartAt), sm.Duration, sm.EligibleRoles),
		})
	}
	return embed
}

func renderGatheringResults(g *models.Gathering, scores []*models.ParticipantScore) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  "Gathering results",
		Color:  colorSuccess,
		Footer: &discordgo.MessageEmbedFooter{Text: "ID " + g.ID},
	}
	if len(scores) == 0 {
		embed.Description = "Nobody took part."
		return embed
	}

	ranked := make([]*models.ParticipantScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].ParticipantID < ranked[b].ParticipantID
	})

	var b strings.Builder
	for n, sc := range ranked {
		fmt.Fprintf(&b, "%d. <@%s> **%s** (mic %s", n+1, sc.ParticipantID, formatNumber(sc.Score), minutes(sc.OpenMicSeconds))
		if sc.StreamingSeconds > 0 {
			fmt.Fprintf(&b, ", stream %s", minutes(sc.StreamingSeconds))
		}
		if sc.CameraSeconds > 0 {
			fmt.Fprintf(&b, ", camera %s", minutes(sc.CameraSeconds))
		}
		if sc.ServerMuteCount > 0 {
			fmt.Fprintf(&b, ", muted %dx", sc.ServerMuteCount)
		}
		b.WriteString(")\n")
	}
	embed.Description = strings.TrimRight(b.String(), "\n")
	return embed
}

func renderPollMessage(question string, options []models.PollOption) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 **%s**\n", question)
	for _, o := range options {
		fmt.Fprintf(&b, "%s %s\n", o.Emoji, o.Label)
	}
	b.WriteString("React to vote.")
	return b.String()
}

func minutes(seconds float64) string {
	return fmt.Sprintf("%.0fm", seconds/60)
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
