package mqtt

import "strings"

// DefaultRoot is the topic root used when none is configured.
const DefaultRoot = "presence"

// Topics builds the topic hierarchy under a root:
//
//	{root}/in/raddec[/...]   inbound raddecs (one object or an array)
//	{root}/in/dynamb[/...]   inbound dynambs
//	{root}/in/statid[/...]   inbound statids
//	{root}/out/event/{tag}   presence events, by primary event tag
//	{root}/out/dynamb        accepted dynambs
//	{root}/system/status     retained online/offline status
//
// Producers may append sub-levels to the inbound topics, e.g. a gateway id.
type Topics struct {
	root string
}

// NewTopics returns the builder for root. Trailing slashes are dropped.
func NewTopics(root string) Topics {
	root = strings.TrimRight(root, "/")
	if root == "" {
		root = DefaultRoot
	}
	return Topics{root: root}
}

// Root returns the topic root.
func (t Topics) Root() string {
	return t.root
}

// =============================================================================
// Inbound
// =============================================================================

// Raddecs returns the base inbound raddec topic.
func (t Topics) Raddecs() string {
	return t.root + "/in/raddec"
}

// Dynambs returns the base inbound dynamb topic.
func (t Topics) Dynambs() string {
	return t.root + "/in/dynamb"
}

// Statids returns the base inbound statid topic.
func (t Topics) Statids() string {
	return t.root + "/in/statid"
}

// AllRaddecs matches the raddec topic and all its sub-levels.
func (t Topics) AllRaddecs() string {
	return t.Raddecs() + "/#"
}

// AllDynambs matches the dynamb topic and all its sub-levels.
func (t Topics) AllDynambs() string {
	return t.Dynambs() + "/#"
}

// AllStatids matches the statid topic and all its sub-levels.
func (t Topics) AllStatids() string {
	return t.Statids() + "/#"
}

// =============================================================================
// Outbound
// =============================================================================

// Event returns the topic for events whose primary tag is tag.
//
// Example: presence/out/event/appearance
func (t Topics) Event(tag string) string {
	return t.root + "/out/event/" + tag
}

// AllEvents matches every event topic.
func (t Topics) AllEvents() string {
	return t.root + "/out/event/+"
}

// DynambOut returns the topic accepted dynambs are published to.
func (t Topics) DynambOut() string {
	return t.root + "/out/dynamb"
}

// SystemStatus returns the retained status topic.
func (t Topics) SystemStatus() string {
	return t.root + "/system/status"
}
