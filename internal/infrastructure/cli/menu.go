package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/ports/inbound"
)

type menuOptions struct {
	url            string
	files          []string
	wineURL        string
	wineFiles      []string
	currency       string
	courses        []string
	minPrice       float64
	maxPrice       float64
	estimatePrices bool
}

func newMenuCommand(run runner) *cobra.Command {
	var opts menuOptions

	cmd := &cobra.Command{
		Use:   "menu [url]",
		Short: "Pair wines with a restaurant menu",
		Long: `Recommends a wine for each selected dish on a restaurant menu.
The menu is either a restaurant website (crawled for menu pages) or one
or more photos and PDFs given with --file. A wine list can be supplied
the same way with --wine-url or --wine-file.`,
		Example: `  sommelier menu https://bistro.example --course starter --course main
  sommelier menu --url https://bistro.example --currency EUR
  sommelier menu --file page1.jpg --file page2.jpg --wine-file wines.pdf --max-price 60`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := urlArg(args, opts.url)
			if url == "" && len(opts.files) == 0 {
				return errors.New("provide a menu URL or at least one --file")
			}

			food, err := source(url, opts.files)
			if err != nil {
				return err
			}
			var wine pairing.Source
			if opts.wineURL != "" || len(opts.wineFiles) > 0 {
				if wine, err = source(strings.TrimSpace(opts.wineURL), opts.wineFiles); err != nil {
					return err
				}
			}

			courses, err := pairing.ParseCourses(opts.courses)
			if err != nil {
				return err
			}

			options := pairing.PairingOptions{
				Currency:       strings.ToUpper(opts.currency),
				Courses:        courses,
				EstimatePrices: opts.estimatePrices,
			}
			if cmd.Flags().Changed("min-price") {
				options.MinPrice = pairing.Price(opts.minPrice)
			}
			if cmd.Flags().Changed("max-price") {
				options.MaxPrice = pairing.Price(opts.maxPrice)
			}

			return run(cmd, func(service inbound.PairingService) error {
				result, err := service.PairMenu(cmd.Context(), inbound.MenuPairingCommand{
					Food:    food,
					Wine:    wine,
					Options: options,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "restaurant website (alternative to the positional argument)")
	f.StringArrayVarP(&opts.files, "file", "f", nil, "menu photo or PDF (repeatable)")
	f.StringVar(&opts.wineURL, "wine-url", "", "wine list URL")
	f.StringArrayVar(&opts.wineFiles, "wine-file", nil, "wine list photo or PDF (repeatable)")
	f.StringVar(&opts.currency, "currency", "", "currency for prices when the menu shows none (default USD)")
	f.StringSliceVar(&opts.courses, "course", nil, "courses to pair: starter, main, dessert (main is always included)")
	f.Float64Var(&opts.minPrice, "min-price", 0, "lowest bottle price")
	f.Float64Var(&opts.maxPrice, "max-price", 0, "highest bottle price")
	f.BoolVar(&opts.estimatePrices, "estimate-prices", false, "estimate prices when no wine list is given")

	return cmd
}
