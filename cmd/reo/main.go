// Package main provides the reo CLI.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/objectionary/reo/internal/compile"
	"github.com/objectionary/reo/internal/graph"
	"github.com/objectionary/reo/internal/image"
	"github.com/objectionary/reo/internal/universe"
)

var rootCmd = &cobra.Command{
	Use:   "reo",
	Short: "SODG compiler and object virtual machine",
	Long: `Reo compiles textual SODG programs into binary graph images,
merges independently built images and dataizes the objects inside them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile <source> <image>",
	Short: "Compile a source file or a source tree into an image",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompile,
}

var emptyCmd = &cobra.Command{
	Use:   "empty <image>",
	Short: "Write an image holding only the root vertex",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmpty,
}

var mergeCmd = &cobra.Command{
	Use:   "merge <target> <image>...",
	Short: "Merge images into the target image",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMerge,
}

var dataizeCmd = &cobra.Command{
	Use:   "dataize <image> <locator>",
	Short: "Evaluate an object down to its bytes and print them",
	Args:  cobra.ExactArgs(2),
	RunE:  runDataize,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <image> [locator]",
	Short: "Print the object tree of an image",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runInspect,
}

var (
	verbose bool
	force   bool
	save    bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Print progress details")
	compileCmd.Flags().BoolVar(&force, "force", false, "Recompile even when the image is up to date")
	dataizeCmd.Flags().BoolVar(&save, "save", false, "Write computed values back into the image")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(emptyCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(dataizeCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	src, out := args[0], args[1]
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("examining %s: %w", src, err)
	}
	var res *compile.Result
	if info.IsDir() {
		res, err = compile.Dir(src, out, force)
	} else {
		res, err = compile.File(src, out, force)
	}
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Printf("%s is up to date\n", out)
		return nil
	}
	fmt.Printf("compiled %d sources, %d instructions into %s\n", res.Files, res.Instructions, out)
	return nil
}

func runEmpty(cmd *cobra.Command, args []string) error {
	if err := image.Save(args[0], graph.New(), ""); err != nil {
		return err
	}
	fmt.Printf("created empty image %s\n", args[0])
	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	target := args[0]
	g, err := image.Load(target)
	if err != nil {
		return err
	}
	for _, path := range args[1:] {
		in, err := image.Load(path)
		if err != nil {
			return err
		}
		if err := g.Merge(in); err != nil {
			return fmt.Errorf("merging %s into %s: %w", path, target, err)
		}
		log.Printf("merged %s, %d vertices now", path, g.Len())
	}
	if err := image.Save(target, g, ""); err != nil {
		return err
	}
	fmt.Printf("merged %d images into %s, %d vertices\n", len(args)-1, target, g.Len())
	return nil
}

func runDataize(cmd *cobra.Command, args []string) error {
	path, locator := args[0], args[1]
	source := image.SourceDigest(path)
	g, err := image.Load(path)
	if err != nil {
		return err
	}
	d, derr := universe.New(g).Dataize(locator)
	if save {
		if err := image.Save(path, g, source); err != nil {
			return err
		}
		log.Printf("computed values saved into %s", path)
	}
	if derr != nil {
		return derr
	}
	fmt.Println(d.Hex())
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	g, err := image.Load(args[0])
	if err != nil {
		return err
	}
	locator := "Φ"
	start := graph.Root
	if len(args) == 2 {
		locator = args[1]
		v, err := universe.New(g).Find(locator)
		if err != nil {
			return err
		}
		sub, err := g.Slice(v)
		if err != nil {
			return err
		}
		g = sub
		start = v
	}
	inspect(os.Stdout, g, start, locator)
	return nil
}

// inspect prints the object tree hanging off one vertex, attributes
// sorted, payloads as hex, ρ edges shown but never followed.
func inspect(w io.Writer, g *graph.Graph, start uint32, locator string) {
	fmt.Fprintf(w, "%s ν%d\n", locator, start)
	if d, ok := g.Data(start); ok {
		fmt.Fprintf(w, "  Δ %s\n", d.Hex())
	}
	tree(w, g, start, "  ", map[uint32]bool{start: true})
	fmt.Fprintf(w, "%d vertices\n", g.Len())
}

func tree(w io.Writer, g *graph.Graph, v uint32, indent string, seen map[uint32]bool) {
	for _, name := range g.Attrs(v) {
		to, _ := g.Attr(v, name)
		line := fmt.Sprintf("%s.%s ➞ ν%d", indent, name, to)
		if d, ok := g.Data(to); ok {
			line += " Δ " + d.Hex()
		}
		fmt.Fprintln(w, line)
		if name == graph.AttrRho || seen[to] {
			continue
		}
		seen[to] = true
		tree(w, g, to, indent+"  ", seen)
	}
}
