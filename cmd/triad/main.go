package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/triadstore/triad"
	"github.com/triadstore/triad/pkg/graphstore"
	"github.com/triadstore/triad/pkg/query"
	"github.com/triadstore/triad/pkg/schema"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "triad",
	Short: "CLI for the triad multi-model query engine",
	Long:  `Manage objects, relations and embeddings in a triad SQLite database and run complex queries against them.`,
}

func openDB() (*triad.DB, error) {
	var opts []triad.Option
	if verbose {
		opts = append(opts, triad.WithLogger(query.NewStdLogger(query.LevelDebug)))
	}
	db, err := triad.Open(triad.DefaultConfig(dbPath), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Database initialized at %s\n", dbPath)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage schema definitions",
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a YAML schema file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return fmt.Errorf("schema file is required")
		}
		file, err := schema.ParseFile(path)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.ApplySchema(context.Background(), file); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}

		fmt.Printf("Schema applied: %d object types, %d relation types, %d embeddings\n",
			len(file.ObjectTypes), len(file.RelationTypes), len(file.Embeddings))
		return nil
	},
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schema definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		catalog := db.Catalog()
		for _, def := range catalog.ListObjectTypes() {
			props := make([]string, len(def.Properties))
			for i, p := range def.Properties {
				props[i] = fmt.Sprintf("%s:%s", p.Name, p.DataType)
			}
			fmt.Printf("object type %s (%s)\n", def.Name, strings.Join(props, ", "))
		}
		for _, def := range catalog.ListRelationTypes() {
			fmt.Printf("relation type %s (%s -> %s)\n", def.Name,
				allowList(def.SourceTypes), allowList(def.TargetTypes))
		}
		for _, def := range catalog.ListEmbeddingDefinitions() {
			fmt.Printf("embedding %s (object type %s, %d dimensions)\n",
				def.Name, def.ObjectType, def.Dimensions)
		}
		return nil
	},
}

func allowList(types []string) string {
	if len(types) == 0 {
		return "any"
	}
	return strings.Join(types, "|")
}

var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Manage objects",
}

var objectPutCmd = &cobra.Command{
	Use:   "put <type> <id>",
	Short: "Insert or update an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		propsStr, _ := cmd.Flags().GetString("properties")
		weight, _ := cmd.Flags().GetFloat64("weight")

		var props map[string]any
		if propsStr != "" {
			if err := json.Unmarshal([]byte(propsStr), &props); err != nil {
				return fmt.Errorf("invalid properties JSON: %w", err)
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		obj := &query.Object{
			ID:         args[1],
			ObjectType: args[0],
			Weight:     weight,
			Properties: props,
		}
		if err := db.PutObject(context.Background(), obj); err != nil {
			return fmt.Errorf("failed to put object: %w", err)
		}

		fmt.Printf("Object %s/%s stored\n", args[0], args[1])
		return nil
	},
}

var objectGetCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Fetch an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		obj, err := db.GetObject(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(obj)
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete an object and its embeddings and relations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteObject(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Object %s/%s deleted\n", args[0], args[1])
		return nil
	},
}

var relateCmd = &cobra.Command{
	Use:   "relate <relation-type> <from-type> <from-id> <to-type> <to-id>",
	Short: "Add a relation between two objects",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		propsStr, _ := cmd.Flags().GetString("properties")
		var props map[string]any
		if propsStr != "" {
			if err := json.Unmarshal([]byte(propsStr), &props); err != nil {
				return fmt.Errorf("invalid properties JSON: %w", err)
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rel := &graphstore.Relation{
			RelationType: args[0],
			FromType:     args[1],
			FromID:       args[2],
			ToType:       args[3],
			ToID:         args[4],
			Properties:   props,
		}
		if err := db.Relate(context.Background(), rel); err != nil {
			return fmt.Errorf("failed to add relation: %w", err)
		}

		fmt.Printf("Relation %s added: %s\n", args[0], rel.ID)
		return nil
	},
}

var embedCmd = &cobra.Command{
	Use:   "embed <definition> <object-id>",
	Short: "Add or update an object's embedding",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		if vectorStr == "" {
			return fmt.Errorf("vector is required")
		}

		var vector []float32
		for _, part := range strings.Split(vectorStr, ",") {
			val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
			if err != nil {
				return fmt.Errorf("invalid vector format: %w", err)
			}
			vector = append(vector, float32(val))
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddEmbedding(context.Background(), args[0], args[1], vector); err != nil {
			return fmt.Errorf("failed to add embedding: %w", err)
		}

		fmt.Printf("Embedding %s/%s stored\n", args[0], args[1])
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [file]",
	Short: "Run a complex query from a JSON file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("failed to read query: %w", err)
		}

		var q query.ComplexQuery
		if err := json.Unmarshal(data, &q); err != nil {
			return fmt.Errorf("invalid query JSON: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		planOnly, _ := cmd.Flags().GetBool("plan")
		if planOnly {
			plan, err := db.Plan(&q)
			if err != nil {
				return err
			}
			return printJSON(plan)
		}

		result, err := db.Execute(context.Background(), &q)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "triad.db", "Database file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	schemaApplyCmd.Flags().StringP("file", "f", "", "YAML schema file")
	objectPutCmd.Flags().String("properties", "", "Object properties as JSON")
	objectPutCmd.Flags().Float64("weight", 0, "Object weight in [0, 10]")
	relateCmd.Flags().String("properties", "", "Relation properties as JSON")
	embedCmd.Flags().String("vector", "", "Comma-separated vector values")
	queryCmd.Flags().Bool("plan", false, "Print the execution plan instead of running the query")

	schemaCmd.AddCommand(schemaApplyCmd, schemaListCmd)
	objectCmd.AddCommand(objectPutCmd, objectGetCmd, objectDeleteCmd)
	rootCmd.AddCommand(initCmd, schemaCmd, objectCmd, relateCmd, embedCmd, queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
