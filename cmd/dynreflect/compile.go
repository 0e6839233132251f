package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/protoutil"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

func newCompileCmd(logger *slog.Logger) *cobra.Command {
	var importPaths []string
	var out string

	cmd := &cobra.Command{
		Use:   "compile <proto-file>...",
		Short: "Compile .proto sources into a FileDescriptorSet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := importPaths
			if len(paths) == 0 {
				paths = cfg.Compile.ImportPaths
			}
			if len(paths) == 0 {
				paths = []string{"."}
			}

			resolver := protocompile.WithStandardImports(&protocompile.SourceResolver{ImportPaths: paths})
			compiler := protocompile.Compiler{
				Resolver:       resolver,
				SourceInfoMode: protocompile.SourceInfoStandard,
			}

			relArgs := make([]string, len(args))
			for i, a := range args {
				relArgs[i] = relativeToImportPath(a, paths)
			}

			logger.Info("compiling proto sources", "files", relArgs, "import_paths", paths)

			files, err := compiler.Compile(context.Background(), relArgs...)
			if err != nil {
				return fmt.Errorf("compiling: %w", err)
			}

			fds := &descriptorpb.FileDescriptorSet{}
			seen := make(map[string]bool)
			var addTransitive func(fd protoreflect.FileDescriptor)
			addTransitive = func(fd protoreflect.FileDescriptor) {
				if seen[fd.Path()] {
					return
				}
				seen[fd.Path()] = true
				imports := fd.Imports()
				for i := 0; i < imports.Len(); i++ {
					addTransitive(imports.Get(i).FileDescriptor)
				}
				fds.File = append(fds.File, protoutil.ProtoFromFileDescriptor(fd))
			}
			for _, fd := range files {
				addTransitive(fd)
			}

			data, err := proto.Marshal(fds)
			if err != nil {
				return fmt.Errorf("marshaling descriptor set: %w", err)
			}

			if out == "" {
				_, err := os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil { // #nosec G306 -- descriptor sets are not sensitive
				return fmt.Errorf("writing %s: %w", out, err)
			}
			logger.Info("wrote descriptor set", "path", out, "files", len(fds.File))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&importPaths, "import-path", "I", nil, "directory to search for imports (repeatable)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path for the FileDescriptorSet (default: stdout)")
	return cmd
}

// relativeToImportPath rewrites a proto file argument (which the user likely
// gave as a path relative to the shell's cwd) into a path relative to one of
// importPaths, which is what protocompile.SourceResolver expects as an
// import path. Falls back to the file's base name if it is not under any
// import path.
func relativeToImportPath(path string, importPaths []string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	for _, ip := range importPaths {
		absIP, err := filepath.Abs(ip)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absIP, abs)
		if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}
