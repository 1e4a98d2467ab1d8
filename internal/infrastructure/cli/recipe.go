package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sommekat/sommelier/internal/ports/inbound"
)

func newRecipeCommand(run runner) *cobra.Command {
	var (
		url     string
		files   []string
		country string
	)

	cmd := &cobra.Command{
		Use:   "recipe [url]",
		Short: "Recommend three wines for a recipe",
		Long: `Recommends three wines for a home-cooked recipe, given as a recipe web
page or as photos and PDFs. With --country the suggestions favour bottles
that are easy to buy there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := urlArg(args, url)
			if target == "" && len(files) == 0 {
				return errors.New("provide a recipe URL or at least one --file")
			}

			src, err := source(target, files)
			if err != nil {
				return err
			}

			return run(cmd, func(service inbound.PairingService) error {
				result, err := service.PairRecipe(cmd.Context(), inbound.RecipePairingCommand{
					Source:        src,
					TargetCountry: strings.TrimSpace(country),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "recipe page (alternative to the positional argument)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "recipe photo or PDF (repeatable)")
	cmd.Flags().StringVar(&country, "country", "", "country the wines should be available in")

	return cmd
}
