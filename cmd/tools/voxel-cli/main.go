package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/annel0/voxel-engine/internal/storage"
)

const timeFormat = "2006-01-02 15:04:05"

func main() {
	app := &cli.App{
		Name:  "voxel-cli",
		Usage: "работа с сохранениями воксельного мира",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "saves", Value: "saves", Usage: "каталог сохранений"},
		},
		Commands: []*cli.Command{
			{
				Name:  "saves",
				Usage: "сохранения",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "список сохранений",
						Action: listSaves,
					},
					{
						Name:      "create",
						Usage:     "создать сохранение",
						ArgsUsage: "<имя>",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "seed", Usage: "сид (по умолчанию случайный)"},
						},
						Action: createSave,
					},
				},
			},
			{
				Name:  "region",
				Usage: "регионы сохранения",
				Subcommands: []*cli.Command{
					{
						Name:      "inspect",
						Usage:     "индекс регионов и записи чанков",
						ArgsUsage: "<каталог сохранения>",
						Action:    inspectRegions,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func listSaves(c *cli.Context) error {
	saves := storage.ScanForSaves(c.String("saves"))
	if len(saves) == 0 {
		fmt.Fprintln(c.App.Writer, "Сохранений нет")
		return nil
	}
	printSaves(c.App.Writer, saves)
	return nil
}

func printSaves(out io.Writer, saves []storage.SaveInfo) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ИМЯ\tКАТАЛОГ\tСИД\tТИКИ\tСОЗДАНО")
	for _, s := range saves {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			s.Metadata.DisplayName, filepath.Base(s.Path), s.Metadata.Seed,
			s.Metadata.ElapsedTicks, s.Metadata.CreationDate.Format(timeFormat))
	}
	tw.Flush()
}

func createSave(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("нужно имя сохранения")
	}
	name := c.Args().Get(0)
	dir := c.String("saves")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		path string
		err  error
	)
	if c.IsSet("seed") {
		path, err = storage.CreateSaveWithSeed(dir, name, int32(c.Int("seed")))
	} else {
		path, err = storage.CreateSave(dir, name)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "✅ Создано %s\n", path)
	return nil
}

func inspectRegions(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("нужен каталог сохранения")
	}
	return inspect(c.App.Writer, c.Args().Get(0))
}

func inspect(out io.Writer, dir string) error {
	meta, err := storage.ReadMetadata(filepath.Join(dir, storage.MetadataFileName))
	if err != nil {
		return err
	}
	index, err := storage.ReadRegionIndex(filepath.Join(dir, storage.RegionIndexFileName))
	if err != nil {
		return fmt.Errorf("индекс регионов: %w", err)
	}

	fmt.Fprintf(out, "Сохранение %q, версия %d, сид %d, регионов %d\n",
		meta.DisplayName, meta.Version, meta.Seed, index.Len())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, cell := range index.Cells() {
		n, _ := index.Lookup(cell)
		r, err := storage.ReadRegionFile(filepath.Join(dir, storage.RegionFileName(n)))
		if err != nil {
			fmt.Fprintf(tw, "регион %d (%d,%d)\tошибка: %v\n", n, cell.X, cell.Y, err)
			continue
		}

		fmt.Fprintf(tw, "регион %d (%d,%d)\tчанков %d\tбайт %d\n", n, cell.X, cell.Y, r.Len(), r.Size())
		for _, pos := range r.Chunks() {
			_, e, _ := r.GetChunkSafe(pos)
			fmt.Fprintf(tw, "  чанк (%d,%d,%d)\t%v\tпалитра %d\tсмещение %d\tразмер %d\n",
				pos.X, pos.Y, pos.Z, e.Mode, e.PaletteLen, e.Offset, e.Size)
		}
	}
	return nil
}
