package daemon

import (
	"fmt"
	"strings"

	"github.com/psaab/relayd/pkg/cmdtree"
	"github.com/psaab/relayd/pkg/command"
	"github.com/psaab/relayd/pkg/plugin"
)

// registerBuiltins installs the daemon's own commands. They exercise
// all three authoring styles: simple for flat commands, raw for
// unsplit tails, and a tree for the audit subcommands.
func (d *Daemon) registerBuiltins() error {
	core, err := plugin.NewDescription(
		"relayd", "relayd", d.opts.Version,
		"Built-in daemon commands", "", nil, nil)
	if err != nil {
		return err
	}

	builder := func(primary string) *command.MetaBuilder {
		return command.NewMetaBuilder(primary).Plugin(core)
	}

	register := func(cmd command.Command, meta *command.Meta) error {
		return d.mgr.Register(cmd, meta)
	}

	aliasHint := cmdtree.Argument("command", cmdtree.Words{
		Fn: func(cmdtree.Source) []string { return d.mgr.Aliases() },
	})
	if err := register(command.SimpleCommand(d.helpCommand),
		builder("help").Alias("commands").Hint(aliasHint).Build()); err != nil {
		return err
	}
	if err := register(command.SimpleCommand(d.versionCommand),
		builder("version").Build()); err != nil {
		return err
	}
	if err := register(command.RawCommand(d.echoCommand),
		builder("echo").Build()); err != nil {
		return err
	}
	if err := register(command.SimpleCommand(d.pluginsCommand),
		builder("plugins").Build()); err != nil {
		return err
	}
	if err := register(command.SimpleCommand(d.shutdownCommand),
		builder("shutdown").Alias("stop").Build()); err != nil {
		return err
	}

	audit := cmdtree.Literal("audit").
		Then(cmdtree.Literal("show").
			Executes(d.auditShow).
			Then(cmdtree.Argument("count", cmdtree.BoundedInt(1, 1000)).
				Executes(d.auditShow))).
		Then(cmdtree.Literal("clear").
			Executes(d.auditClear))
	return d.mgr.Register(&command.TreeCommand{Root: audit},
		command.MetaBuilderFromTree(audit).Plugin(core).Build())
}

func (d *Daemon) helpCommand(src cmdtree.Source, args []string) error {
	if len(args) > 0 {
		alias := strings.ToLower(args[0])
		meta, ok := d.mgr.Meta(alias)
		if !ok {
			src.Reply("no such command: " + args[0])
			return nil
		}
		src.Reply(alias + " (aliases: " + strings.Join(meta.Aliases, ", ") + ")")
		if meta.Plugin != nil {
			src.Reply("  provided by " + meta.Plugin.DisplayName())
		}
		return nil
	}
	src.Reply("Available commands:")
	for _, alias := range d.mgr.Aliases() {
		line := "  " + alias
		if meta, ok := d.mgr.Meta(alias); ok && meta.Plugin != nil {
			line = fmt.Sprintf("  %-20s %s", alias, meta.Plugin.DisplayName())
		}
		src.Reply(line)
	}
	return nil
}

func (d *Daemon) versionCommand(src cmdtree.Source, _ []string) error {
	src.Reply("relayd " + d.opts.Version)
	return nil
}

func (d *Daemon) echoCommand(src cmdtree.Source, arguments string) error {
	src.Reply(arguments)
	return nil
}

func (d *Daemon) pluginsCommand(src cmdtree.Source, _ []string) error {
	seen := make(map[string]bool)
	var lines []string
	for _, alias := range d.mgr.Aliases() {
		meta, ok := d.mgr.Meta(alias)
		if !ok || meta.Plugin == nil || seen[meta.Plugin.ID()] {
			continue
		}
		seen[meta.Plugin.ID()] = true
		p := meta.Plugin
		line := fmt.Sprintf("  %s (%s)", p.DisplayName(), p.ID())
		if v := p.Version(); v != "" {
			line += " v" + v
		}
		if authors := p.Authors(); len(authors) > 0 {
			line += " by " + strings.Join(authors, ", ")
		}
		lines = append(lines, line)
	}
	src.Reply(fmt.Sprintf("Plugins (%d):", len(lines)))
	for _, line := range lines {
		src.Reply(line)
	}
	return nil
}

func (d *Daemon) shutdownCommand(src cmdtree.Source, _ []string) error {
	src.Reply("shutting down")
	d.requestStop()
	return nil
}

func (d *Daemon) auditShow(inv *cmdtree.Invocation) error {
	count := 20
	if v, ok := inv.Values["count"].(int64); ok {
		count = int(v)
	}
	recs := d.audit.Latest(count)
	inv.Source.Reply(fmt.Sprintf("Last %d commands:", len(recs)))
	for _, rec := range recs {
		detail := ""
		if rec.Detail != "" {
			detail = " (" + rec.Detail + ")"
		}
		inv.Source.Reply(fmt.Sprintf("  %s %-10s %-12s %q%s",
			rec.Time.Format("15:04:05"), rec.Source, rec.Result, rec.Line, detail))
	}
	return nil
}

func (d *Daemon) auditClear(inv *cmdtree.Invocation) error {
	d.audit.Clear()
	inv.Source.Reply("audit buffer cleared")
	return nil
}
