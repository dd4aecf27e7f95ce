package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
)

var errInputClosed = errors.New("input closed")

type BatchRunner interface {
	Run(ctx context.Context, category Category, files []string) []Result
}

// Menu is the interactive front of the importer.
type Menu struct {
	in      *bufio.Reader
	out     io.Writer
	root    string
	runner  BatchRunner
	shuffle func(n int) []int
}

func NewMenu(in io.Reader, out io.Writer, root string, runner BatchRunner) *Menu {
	return &Menu{
		in:      bufio.NewReader(in),
		out:     out,
		root:    root,
		runner:  runner,
		shuffle: rand.Perm,
	}
}

func (m *Menu) readLine() (string, error) {
	line, err := m.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errInputClosed
	}
	return strings.TrimSpace(line), nil
}

// Run shows the category menu until the user exits or input ends.
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprint(m.out, "\nWhat would you like to import?\n"+
			"(1) Characters\n(2) Art\n(3) Stories\n(9) Everything\n(0) Close\n> ")

		choice, err := m.readLine()
		if err != nil {
			return nil
		}

		switch choice {
		case "0":
			fmt.Fprintln(m.out, "Goodbye!")
			return nil
		case "1":
			err = m.category(ctx, Characters)
		case "2":
			err = m.category(ctx, Art)
		case "3":
			err = m.category(ctx, Stories)
		case "9":
			for _, c := range []Category{Characters, Art, Stories} {
				files, ferr := c.Files(m.root)
				if ferr != nil {
					fmt.Fprintf(m.out, "Skipping %s: %v\n", c.Name, ferr)
					continue
				}
				m.run(ctx, c, files)
			}
		default:
			fmt.Fprintln(m.out, "I didn't quite get that.")
		}

		if errors.Is(err, errInputClosed) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (m *Menu) category(ctx context.Context, c Category) error {
	files, err := c.Files(m.root)
	if err != nil {
		fmt.Fprintf(m.out, "Can't find the %s folder within the given path: %v\n", c.Folder, err)
		return nil
	}
	fmt.Fprintf(m.out, "Found %d %s files. Files starting with _ were ignored.\n", len(files), c.Name)

	for {
		fmt.Fprint(m.out, "(1) Import all\n(2) Import a random group\n(3) Import a specific file\n(0) Back\n> ")
		choice, err := m.readLine()
		if err != nil {
			return err
		}

		switch choice {
		case "0":
			return nil
		case "1":
			m.run(ctx, c, files)
			return nil
		case "2":
			n, err := m.askAmount(len(files))
			if err != nil {
				return err
			}
			picked := make([]string, 0, n)
			for _, i := range m.shuffle(len(files))[:n] {
				picked = append(picked, files[i])
			}
			m.run(ctx, c, picked)
			return nil
		case "3":
			file, err := m.askFile(files)
			if err != nil {
				return err
			}
			m.run(ctx, c, []string{file})
			return nil
		default:
			fmt.Fprintln(m.out, "I didn't quite get that.")
		}
	}
}

func (m *Menu) askAmount(total int) (int, error) {
	fmt.Fprintln(m.out, "How many would you like?")
	for {
		line, err := m.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		switch {
		case err != nil:
			fmt.Fprintln(m.out, "I didn't quite get that.")
		case n < 1:
			fmt.Fprintln(m.out, "That's too little!")
		case n > total:
			fmt.Fprintf(m.out, "That's too much! Clamping down to %d.\n", total)
			return total, nil
		default:
			return n, nil
		}
	}
}

func (m *Menu) askFile(files []string) (string, error) {
	fmt.Fprintln(m.out, "What file would you like to import?")
	for {
		line, err := m.readLine()
		if err != nil {
			return "", err
		}
		for _, f := range files {
			name := filepath.Base(f)
			if strings.EqualFold(name, line) || strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), line) {
				return f, nil
			}
		}
		fmt.Fprintln(m.out, "I didn't quite get that.")
	}
}

func (m *Menu) run(ctx context.Context, c Category, files []string) {
	if len(files) == 0 {
		fmt.Fprintf(m.out, "No %s to import.\n", c.Name)
		return
	}
	fmt.Fprintf(m.out, "Importing %d %s...\n", len(files), c.Name)
	results := m.runner.Run(ctx, c, files)

	failed := Failed(results)
	for _, res := range results {
		if res.Err == nil {
			fmt.Fprintf(m.out, "  ok    %s -> %s\n", res.File, res.URL)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(m.out, "---There were errors during the import!---")
		for _, res := range failed {
			fmt.Fprintf(m.out, "  error %s: %v\n", res.File, res.Err)
		}
	}
	fmt.Fprintf(m.out, "%d imported, %d failed.\n", len(results)-len(failed), len(failed))
}
