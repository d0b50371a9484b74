package models

// MailboxInfo mirrors one raw LIST response line from the server.
type MailboxInfo struct {
	Name        string   `json:"name"`
	Delimiter   string   `json:"delimiter"`
	Attributes  []string `json:"attributes"`
	UnreadCount int      `json:"unreadCount,omitempty"`
}

// Mailbox is one node of the folder tree. Children are keyed by the
// path segment below this node.
type Mailbox struct {
	Attribs   []string  `json:"attribs"`
	Delimiter string    `json:"delimiter"`
	Path      string    `json:"path"`
	Children  MailBoxes `json:"children,omitempty"`
}

// MailBoxes is the recursive folder-name → mailbox map. It is rebuilt
// fully on every folder-list fetch, never diffed incrementally.
type MailBoxes map[string]*Mailbox

// Flatten returns every full mailbox path in the tree, parents first.
func (m MailBoxes) Flatten() []string {
	var paths []string
	var walk func(boxes MailBoxes)
	walk = func(boxes MailBoxes) {
		for _, box := range boxes {
			paths = append(paths, box.Path)
			if len(box.Children) > 0 {
				walk(box.Children)
			}
		}
	}
	walk(m)
	return paths
}

// Lookup finds a node by its full path, splitting on each node's own
// delimiter. Returns nil when the path is not present.
func (m MailBoxes) Lookup(path string) *Mailbox {
	for _, box := range m {
		if box.Path == path {
			return box
		}
		if found := box.Children.Lookup(path); found != nil {
			return found
		}
	}
	return nil
}
