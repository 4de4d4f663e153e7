package wowhead

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

// NPCParser emits creature_template name updates.
type NPCParser struct{}

// NewNPCParser returns an NPCParser.
func NewNPCParser() *NPCParser { return &NPCParser{} }

// Address implements parser.Parser.
func (*NPCParser) Address() string { return "wowhead.com/npc=" }

// Parse implements parser.Parser.
func (*NPCParser) Parse(block crawler.Block) string {
	pg, ok := loadPage(block)
	if !ok {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE `creature_template` SET `name` = %s", sqlString(pg.title))
	// The tag line ("<Innkeeper>") is rendered right below the heading.
	if sub := cleanText(pg.doc.Find("h1.heading-size-1 + div").First().Text()); strings.HasPrefix(sub, "<") && strings.HasSuffix(sub, ">") {
		fmt.Fprintf(&b, ", `subname` = %s", sqlString(strings.Trim(sub, "<>")))
	}
	fmt.Fprintf(&b, " WHERE `entry` = %d;\n", block.ID)
	return b.String()
}

// ItemParser emits item_template name and quality updates.
type ItemParser struct{}

// NewItemParser returns an ItemParser.
func NewItemParser() *ItemParser { return &ItemParser{} }

// Address implements parser.Parser.
func (*ItemParser) Address() string { return "wowhead.com/item=" }

// Parse implements parser.Parser.
func (*ItemParser) Parse(block crawler.Block) string {
	pg, ok := loadPage(block)
	if !ok {
		return ""
	}
	heading := pg.doc.Find("h1.heading-size-1").First()
	class, _ := heading.Attr("class")
	if m := qualityClass.FindStringSubmatch(class); m != nil {
		return fmt.Sprintf("UPDATE `item_template` SET `name` = %s, `Quality` = %s WHERE `entry` = %d;\n",
			sqlString(pg.title), m[1], block.ID)
	}
	return fmt.Sprintf("UPDATE `item_template` SET `name` = %s WHERE `entry` = %d;\n", sqlString(pg.title), block.ID)
}

// ObjectParser emits gameobject_template name updates.
type ObjectParser struct{}

// NewObjectParser returns an ObjectParser.
func NewObjectParser() *ObjectParser { return &ObjectParser{} }

// Address implements parser.Parser.
func (*ObjectParser) Address() string { return "wowhead.com/object=" }

// Parse implements parser.Parser.
func (*ObjectParser) Parse(block crawler.Block) string {
	pg, ok := loadPage(block)
	if !ok {
		return ""
	}
	return fmt.Sprintf("UPDATE `gameobject_template` SET `name` = %s WHERE `entry` = %d;\n", sqlString(pg.title), block.ID)
}

// QuestParser emits quest_template title and description updates.
type QuestParser struct{}

// NewQuestParser returns a QuestParser.
func NewQuestParser() *QuestParser { return &QuestParser{} }

// Address implements parser.Parser.
func (*QuestParser) Address() string { return "wowhead.com/quest=" }

// Parse implements parser.Parser.
func (*QuestParser) Parse(block crawler.Block) string {
	pg, ok := loadPage(block)
	if !ok {
		return ""
	}
	details := pg.meta("description")
	if details == "" {
		return fmt.Sprintf("UPDATE `quest_template` SET `Title` = %s WHERE `Id` = %d;\n", sqlString(pg.title), block.ID)
	}
	return fmt.Sprintf("UPDATE `quest_template` SET `Title` = %s, `Details` = %s WHERE `Id` = %d;\n",
		sqlString(pg.title), sqlString(details), block.ID)
}
