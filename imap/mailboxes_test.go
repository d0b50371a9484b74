package imap

import (
	"testing"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMailboxTree(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "INBOX", Delimiter: "/"},
		{Name: "Work", Delimiter: "/"},
		{Name: "Work/Projects", Delimiter: "/"},
		{Name: "Work/Projects/2026", Delimiter: "/"},
		{Name: "Archive.Old", Delimiter: "."},
	}

	tree := BuildMailboxTree(infos)

	require.Contains(t, tree, "INBOX")
	require.Contains(t, tree, "Work")
	require.Contains(t, tree, "Archive")

	projects := tree["Work"].Children["Projects"]
	require.NotNil(t, projects)
	assert.Equal(t, "Work/Projects", projects.Path)

	deep := projects.Children["2026"]
	require.NotNil(t, deep)
	assert.Equal(t, "Work/Projects/2026", deep.Path)

	// Dot-delimited hierarchy splits on its own delimiter.
	old := tree["Archive"].Children["Old"]
	require.NotNil(t, old)
	assert.Equal(t, "Archive.Old", old.Path)
}

func TestBuildMailboxTreeImplicitParent(t *testing.T) {
	// A child listed without its parent still produces the parent node.
	infos := []models.MailboxInfo{
		{Name: "Work/Projects", Delimiter: "/"},
	}

	tree := BuildMailboxTree(infos)
	require.Contains(t, tree, "Work")
	assert.Contains(t, tree["Work"].Children, "Projects")
}

func TestBuildMailboxTreeGmailNamespace(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "INBOX", Delimiter: "/"},
		{Name: "[Gmail]", Delimiter: "/", Attributes: []string{"\\Noselect"}},
		{Name: "[Gmail]/All Mail", Delimiter: "/", Attributes: []string{"\\All"}},
		{Name: "[Gmail]/Sent Mail", Delimiter: "/", Attributes: []string{"\\Sent"}},
	}

	tree := BuildMailboxTree(infos)
	gmail := tree["[Gmail]"]
	require.NotNil(t, gmail)
	assert.Contains(t, gmail.Attribs, "\\Noselect")

	allMail := gmail.Children["All Mail"]
	require.NotNil(t, allMail)
	assert.Equal(t, "[Gmail]/All Mail", allMail.Path)
}

func TestMailBoxesFlattenAndLookup(t *testing.T) {
	tree := BuildMailboxTree([]models.MailboxInfo{
		{Name: "INBOX", Delimiter: "/"},
		{Name: "Work/Projects", Delimiter: "/"},
	})

	paths := tree.Flatten()
	assert.Contains(t, paths, "INBOX")
	assert.Contains(t, paths, "Work/Projects")

	node := tree.Lookup("Work/Projects")
	require.NotNil(t, node)
	assert.Equal(t, "Work/Projects", node.Path)
	assert.Nil(t, tree.Lookup("Does/Not/Exist"))
}

func TestSelectDefaultMailboxAllMailBeatsInbox(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "INBOX"},
		{Name: "[Gmail]/All Mail"},
		{Name: "[Gmail]/Sent Mail"},
	}
	assert.Equal(t, "[Gmail]/All Mail", SelectDefaultMailbox(infos))
}

func TestSelectDefaultMailboxInboxBeatsRest(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "Drafts"},
		{Name: "INBOX"},
		{Name: "Sent"},
	}
	assert.Equal(t, "INBOX", SelectDefaultMailbox(infos))
}

func TestSelectDefaultMailboxCaseInsensitiveInbox(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "Drafts"},
		{Name: "Inbox"},
	}
	assert.Equal(t, "Inbox", SelectDefaultMailbox(infos))
}

func TestSelectDefaultMailboxFallsBackToFirst(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "Drafts"},
		{Name: "Sent"},
	}
	assert.Equal(t, "Drafts", SelectDefaultMailbox(infos))
}

func TestSelectDefaultMailboxEmpty(t *testing.T) {
	assert.Empty(t, SelectDefaultMailbox(nil))
}

func TestSelectDefaultMailboxLocalizedAllMail(t *testing.T) {
	infos := []models.MailboxInfo{
		{Name: "INBOX"},
		{Name: "[Google Mail]/All Mail"},
	}
	assert.Equal(t, "[Google Mail]/All Mail", SelectDefaultMailbox(infos))
}
