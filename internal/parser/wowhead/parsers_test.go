package wowhead

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/parser"
)

const npcPage = `<html><head><title>Innkeeper Allison - NPC - World of Warcraft</title></head>
<body><h1 class="heading-size-1">Innkeeper  Allison</h1><div>&lt;Innkeeper&gt;</div></body></html>`

const itemPage = `<html><head><title>Hearthstone - Item</title></head>
<body><h1 class="heading-size-1 q1">Hearthstone</h1></body></html>`

const questPage = `<html><head><title>A Threat Within - Quest</title>
<meta name="description" content="Speak with Marshal McBride's  aide."></head>
<body><h1 class="heading-size-1">A Threat Within</h1></body></html>`

const missingPage = `<html><head></head><body><div class="database-detail-page-not-found-message">This NPC doesn't exist.</div></body></html>`

func okBlock(id crawler.EntryID, body string) crawler.Block {
	return crawler.Block{ID: id, Content: []byte(body), FetchSucceeded: true, StatusCode: 200}
}

func TestRegisteredParsersIgnoreFailedFetches(t *testing.T) {
	t.Parallel()

	names := parser.Default().Names()
	require.Subset(t, names, []string{NPCName, ItemName, ObjectName, QuestName})
	for _, name := range names {
		p, err := parser.Default().New(name)
		require.NoError(t, err)
		failed := crawler.Block{ID: 3, Content: []byte(npcPage), FetchSucceeded: false}
		require.Empty(t, p.Parse(failed), name)
		require.Empty(t, p.Parse(crawler.Block{ID: 3}), name)
	}
}

func TestParsersReturnEmptyOnUnexpectedContent(t *testing.T) {
	t.Parallel()

	for _, p := range []parser.Parser{NewNPCParser(), NewItemParser(), NewObjectParser(), NewQuestParser()} {
		require.Empty(t, p.Parse(okBlock(1, missingPage)))
		require.Empty(t, p.Parse(okBlock(1, "\x00\x01 not html at all")))
	}
}

func TestNPCParser(t *testing.T) {
	t.Parallel()

	got := NewNPCParser().Parse(okBlock(6740, npcPage))
	require.Equal(t, "UPDATE `creature_template` SET `name` = 'Innkeeper Allison', `subname` = 'Innkeeper' WHERE `entry` = 6740;\n", got)
}

func TestItemParser(t *testing.T) {
	t.Parallel()

	got := NewItemParser().Parse(okBlock(6948, itemPage))
	require.Equal(t, "UPDATE `item_template` SET `name` = 'Hearthstone', `Quality` = 1 WHERE `entry` = 6948;\n", got)
}

func TestObjectParserFallsBackToTitle(t *testing.T) {
	t.Parallel()

	body := `<html><head><title>Mailbox - Object - World of Warcraft</title></head><body></body></html>`
	got := NewObjectParser().Parse(okBlock(32349, body))
	require.Equal(t, "UPDATE `gameobject_template` SET `name` = 'Mailbox' WHERE `entry` = 32349;\n", got)
}

func TestQuestParserEscapes(t *testing.T) {
	t.Parallel()

	got := NewQuestParser().Parse(okBlock(783, questPage))
	require.Equal(t, "UPDATE `quest_template` SET `Title` = 'A Threat Within', `Details` = 'Speak with Marshal McBride\\'s aide.' WHERE `Id` = 783;\n", got)
}

func TestAddresses(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://de.wowhead.com/quest=783", parser.EntryAddress(NewQuestParser(), "de.")(783))
	require.Equal(t, "http://www.wowhead.com/npc=1", parser.EntryAddress(NewNPCParser(), "")(1))
}
