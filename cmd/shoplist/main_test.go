package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
)

type cli struct {
	t      *testing.T
	dbPath string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, dbPath: filepath.Join(t.TempDir(), "shoplist.db")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"--db", c.dbPath, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "shoplist %v", args)
	return out
}

func TestCLICategoryAndItemFlow(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "No categories.\n", c.mustRun("category", "list"))
	assert.Equal(t, "1 [ ] Fresh Produce\n", c.mustRun("category", "add", "Fresh", "Produce"))
	assert.Equal(t, "1 [ ] Apples (Quantity: 6)\n", c.mustRun("item", "add", "1", "Apples", "-n", "6"))
	assert.Equal(t, "2 [ ] Pears (Quantity: 1)\n", c.mustRun("item", "add", "1", "Pears"))
	assert.Equal(t, "2 [x] Pears (Quantity: 1)\n", c.mustRun("item", "check", "2"))
	assert.Equal(t, "1 [ ] Apples (Quantity: 2)\n", c.mustRun("item", "update", "1", "--quantity", "2"))
	assert.Equal(t, "1 [ ] Produce\n", c.mustRun("category", "rename", "1", "Produce"))

	assert.Equal(t,
		"ID  DONE  QTY  NAME\n1   [ ]   2    Apples\n2   [x]   1    Pears\n",
		c.mustRun("item", "list", "1"))

	c.mustRun("item", "delete", "2")
	assert.Equal(t, "ID  DONE  QTY  NAME\n1   [ ]   2    Apples\n", c.mustRun("item", "list", "1"))
}

func TestCLIShare(t *testing.T) {
	c := newCLI(t)

	c.mustRun("category", "add", "Produce")
	c.mustRun("category", "add", "Dairy")
	c.mustRun("item", "add", "1", "Apples", "-n", "3")
	c.mustRun("item", "add", "2", "Milk")

	assert.Empty(t, c.mustRun("share"))

	assert.Equal(t, "1 [x] Produce\n", c.mustRun("category", "toggle", "1"))
	assert.Equal(t, "Category: Produce\n- Apples (Quantity: 3)\n\n", c.mustRun("share"))

	c.mustRun("category", "toggle", "2")
	assert.Equal(t,
		"Category: Produce\n- Apples (Quantity: 3)\n\nCategory: Dairy\n- Milk (Quantity: 1)\n\n",
		c.mustRun("share"))
}

func TestCLIStructuredOutput(t *testing.T) {
	c := newCLI(t)
	c.mustRun("category", "add", "Snacks")
	c.mustRun("item", "add", "1", "Chips", "-n", "2")

	var categories []model.Category
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("--format", "json", "category", "list")), &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "Snacks", categories[0].Name)

	var items []model.Item
	require.NoError(t, yaml.Unmarshal([]byte(c.mustRun("-f", "yaml", "item", "list", "1")), &items))
	require.Len(t, items, 1)
	assert.Equal(t, model.Item{ID: 1, Name: "Chips", CategoryID: 1, Quantity: 2}, items[0])
}

func TestCLIErrors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("item", "add", "7", "Milk")
	assert.True(t, errors.Is(err, store.ErrUnknownCategory), "err = %v", err)

	_, err = c.run("category", "rename", "7", "Dairy")
	assert.EqualError(t, err, "category 7 not found")

	_, err = c.run("category", "toggle", "abc")
	assert.EqualError(t, err, `invalid id "abc"`)

	_, err = c.run("--format", "xml", "category", "list")
	assert.Error(t, err)

	_, err = c.run("category", "add", " ")
	assert.Error(t, err)
}

func TestCLIDeleteCategoryRemovesItems(t *testing.T) {
	c := newCLI(t)
	c.mustRun("category", "add", "Produce")
	c.mustRun("item", "add", "1", "Apples")

	c.mustRun("category", "delete", "1")

	assert.Equal(t, "No categories.\n", c.mustRun("category", "list"))
	assert.Equal(t, "No items.\n", c.mustRun("item", "list", "1"))
}

func TestCLIBackupRestore(t *testing.T) {
	c := newCLI(t)
	dir := filepath.Join(t.TempDir(), "backups")
	flags := []string{"--dir", dir, "--passphrase", "hunter2"}

	c.mustRun("category", "add", "Produce")
	c.mustRun("item", "add", "1", "Apples")

	c.mustRun(append([]string{"backup", "create"}, flags...)...)

	var backups []map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.mustRun(append([]string{"-f", "json", "backup", "list"}, flags...)...)), &backups))
	require.Len(t, backups, 1)

	c.mustRun("category", "delete", "1")
	assert.Equal(t, "No categories.\n", c.mustRun("category", "list"))

	out := c.mustRun(append([]string{"backup", "restore"}, flags...)...)
	assert.Contains(t, out, "Restored")

	assert.Equal(t, "ID  SHARE  NAME\n1   [ ]    Produce\n", c.mustRun("category", "list"))
	assert.Equal(t, "ID  DONE  QTY  NAME\n1   [ ]   1    Apples\n", c.mustRun("item", "list", "1"))

	_, err := c.run("backup", "restore", "--dir", dir, "--passphrase", "wrong")
	assert.Error(t, err)
}
