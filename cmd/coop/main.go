package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"coopline/internal/app"
	"coopline/internal/config"
	"coopline/internal/db"
	"coopline/internal/domain"
	"coopline/internal/engine"
	"coopline/internal/migrate"
	"coopline/internal/notify"
	"coopline/internal/repo"
	"coopline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "coop",
	Short: "Coopline CLI",
	Long: `Coopline runs the internship position and co-op credit lifecycle.
- Workspace: your .coopline directory with only the database; the policy config is stored in the DB and imported explicitly.
- Positions: employer postings that go open -> pending -> closed (or open -> closed on withdrawal).
- Applications: student submissions that move submitted -> selected -> eligibility_evaluated, then through the student decision and grading steps.
- Eligibility: GPA, weeks, total hours, and completed semesters thresholds, checked when an employer selects a student.
- Co-op records: summary and grade for students who accepted co-op credit.
- Event log: diary of changes, view with 'coop log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COOPLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("program", "", "program id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("program", rootCmd.PersistentFlags().Lookup("program"))
}

func registerCommands() {
	rootCmd.AddCommand(studentCmd())
	rootCmd.AddCommand(facultyCmd())
	rootCmd.AddCommand(positionCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(coopCmd())
	rootCmd.AddCommand(programCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func studentCmd() *cobra.Command {
	st := &cobra.Command{Use: "student", Short: "Manage students"}
	st.AddCommand(studentRegisterCmd())
	st.AddCommand(studentShowCmd())
	st.AddCommand(studentListCmd())
	return st
}

func studentRegisterCmd() *cobra.Command {
	var opts engine.StudentRegisterOptions
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a student",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				s, err := e.RegisterStudent(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "student id (generated if empty)")
	cmd.Flags().StringVar(&opts.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	cmd.Flags().StringVar(&opts.Major, "major", "", "major")
	cmd.Flags().IntVar(&opts.CreditHoursCompleted, "credit-hours", 0, "credit hours completed")
	cmd.Flags().Float64Var(&opts.GPA, "gpa", 0, "GPA (0.0-4.0)")
	cmd.Flags().StringVar(&opts.StartTerm, "start-term", "", "start term")
	cmd.Flags().BoolVar(&opts.IsTransfer, "transfer", false, "transfer student")
	cmd.Flags().IntVar(&opts.CompletedSemesters, "semesters", 0, "completed semesters")
	cmd.Flags().StringVar(&opts.ResumeRef, "resume-ref", "", "resume reference")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func studentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetStudent(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func studentListCmd() *cobra.Command {
	var department string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListStudents(ctx, department)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Department", "GPA", "Semesters", "Transfer"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.FullName, s.Department, fmt.Sprintf("%.2f", s.GPA), s.CompletedSemesters, s.IsTransfer})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	return cmd
}

func facultyCmd() *cobra.Command {
	fc := &cobra.Command{Use: "faculty", Short: "Manage faculty coordinators"}
	fc.AddCommand(facultyRegisterCmd())
	fc.AddCommand(facultyShowCmd())
	return fc
}

func facultyRegisterCmd() *cobra.Command {
	var opts engine.FacultyRegisterOptions
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a faculty coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				f, err := e.RegisterFaculty(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "faculty id (generated if empty)")
	cmd.Flags().StringVar(&opts.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func facultyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a faculty coordinator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				f, err := r.GetFaculty(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	return cmd
}

func positionCmd() *cobra.Command {
	pos := &cobra.Command{Use: "position", Short: "Manage positions"}
	pos.AddCommand(positionOpenCmd())
	pos.AddCommand(positionShowCmd())
	pos.AddCommand(positionListCmd())
	pos.AddCommand(positionSelectCmd())
	pos.AddCommand(positionCloseCmd())
	pos.AddCommand(positionApplyCmd())
	return pos
}

func positionOpenCmd() *cobra.Command {
	var opts engine.PositionOpenOptions
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Post a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				p, err := e.OpenPosition(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "position id (generated if empty)")
	cmd.Flags().StringVar(&opts.EmployerID, "employer", "", "employer id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().IntVar(&opts.Weeks, "weeks", 0, "duration in weeks")
	cmd.Flags().IntVar(&opts.HoursPerWeek, "hours-per-week", 0, "hours per week")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location")
	cmd.Flags().StringSliceVar(&opts.MajorsOfInterest, "majors", nil, "majors of interest")
	cmd.Flags().StringSliceVar(&opts.RequiredSkills, "required-skills", nil, "required skills")
	cmd.Flags().StringSliceVar(&opts.PreferredSkills, "preferred-skills", nil, "preferred skills")
	cmd.Flags().StringVar(&opts.Salary, "salary", "", "salary info")
	_ = cmd.MarkFlagRequired("employer")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("weeks")
	_ = cmd.MarkFlagRequired("hours-per-week")
	return cmd
}

func positionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetPosition(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func positionListCmd() *cobra.Command {
	var employerID, status, location string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListPositions(ctx, repo.PositionFilters{
					EmployerID: employerID,
					Status:     status,
					Location:   location,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Employer", "Weeks", "Hrs/Wk", "Status", "Selected"})
				for _, p := range items {
					selected := ""
					if p.SelectedStudentID != nil {
						selected = *p.SelectedStudentID
					}
					tw.AppendRow(table.Row{p.ID, p.Title, p.EmployerID, p.Weeks, p.HoursPerWeek, p.Status, selected})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&employerID, "employer", "", "employer filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&location, "location", "", "location filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func positionSelectCmd() *cobra.Command {
	var studentID, offerLetter string
	cmd := &cobra.Command{
		Use:   "select <position-id>",
		Short: "Select a student and mark the position pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.MarkPending(ctx, engine.MarkPendingOptions{
					PositionID:        args[0],
					SelectedStudentID: studentID,
					OfferLetter:       offerLetter,
					ActorID:           viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "selected student id")
	cmd.Flags().StringVar(&offerLetter, "offer-letter", "", "offer letter reference")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func positionCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <position-id>",
		Short: "Close a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ClosePosition(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func positionApplyCmd() *cobra.Command {
	var studentID string
	cmd := &cobra.Command{
		Use:   "apply <position-id>",
		Short: "Apply a student to a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Apply(ctx, args[0], studentID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "student id")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func applicationCmd() *cobra.Command {
	ap := &cobra.Command{Use: "application", Short: "Manage applications"}
	ap.AddCommand(applicationShowCmd())
	ap.AddCommand(applicationListCmd())
	ap.AddCommand(applicationAcceptCmd())
	ap.AddCommand(applicationDeclineCmd())
	ap.AddCommand(applicationSummaryCmd())
	ap.AddCommand(applicationGradeCmd())
	return ap
}

func applicationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func applicationListCmd() *cobra.Command {
	var positionID, studentID, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListApplications(ctx, repo.ApplicationFilters{
					PositionID: positionID,
					StudentID:  studentID,
					Status:     status,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Student", "Position", "Status", "Verdict"})
				for _, a := range items {
					verdict := ""
					if a.Verdict != nil {
						verdict = *a.Verdict
					}
					tw.AppendRow(table.Row{a.ID, a.StudentID, a.PositionID, a.Status, verdict})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&positionID, "position", "", "position filter")
	cmd.Flags().StringVar(&studentID, "student", "", "student filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func applicationAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <application-id>",
		Short: "Accept co-op credit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AcceptCoop(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func applicationDeclineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decline <application-id>",
		Short: "Decline co-op credit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.DeclineCoop(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func applicationSummaryCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "summary <application-id>",
		Short: "Submit co-op work summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SubmitSummary(ctx, args[0], text, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "summary text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func applicationGradeCmd() *cobra.Command {
	var grade, coordinatorID string
	cmd := &cobra.Command{
		Use:   "grade <application-id>",
		Short: "Grade a co-op summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Grade(ctx, engine.GradeOptions{
					ApplicationID: args[0],
					Grade:         grade,
					CoordinatorID: coordinatorID,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&grade, "grade", "", "grade")
	cmd.Flags().StringVar(&coordinatorID, "coordinator", "", "faculty coordinator id")
	_ = cmd.MarkFlagRequired("grade")
	_ = cmd.MarkFlagRequired("coordinator")
	return cmd
}

func coopCmd() *cobra.Command {
	cp := &cobra.Command{Use: "coop", Short: "Co-op review"}
	cp.AddCommand(coopReviewCmd())
	return cp
}

func coopReviewCmd() *cobra.Command {
	var department, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review co-op applications for a department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCoopApplications(ctx, department, status, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Application", "Student", "Department", "Status", "Grade"})
				for _, it := range items {
					grade := ""
					if it.Coop.Grade != nil {
						grade = *it.Coop.Grade
					}
					tw.AppendRow(table.Row{it.Application.ID, it.StudentName, it.Department, it.Application.Status, grade})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "department filter")
	cmd.Flags().StringVar(&status, "status", "", "application status filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func programCmd() *cobra.Command {
	pg := &cobra.Command{Use: "program", Short: "Manage the program policy"}
	cfg := &cobra.Command{Use: "config", Short: "Manage program config"}
	cfg.AddCommand(programConfigShowCmd())
	cfg.AddCommand(programConfigImportCmd())
	cfg.AddCommand(programConfigInitCmd())
	pg.AddCommand(cfg)
	return pg
}

func programConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show program config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func programConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import program config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ImportConfig(ctx, filePath, r)
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func programConfigInitCmd() *cobra.Command {
	var programID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default coopline.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(programID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&programID, "id", "default", "program id")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyDeleteCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name, key string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = uuid.New().String()
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.EnsureActor(ctx, actorID); err != nil {
					return err
				}
				rec := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(key),
				}
				if err := r.InsertAPIKey(ctx, nil, rec); err != nil {
					return err
				}
				fmt.Printf("api key (store it now, it is not retrievable): %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&key, "key", "", "key value (generated if empty)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyActor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveProgramConfig(cmd.Context(), workspace, viper.GetString("program"), r)
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			e := engine.New(conn, cfg)
			e.Logger = logger
			e.Notifier = notify.LogDispatcher{Logger: logger}
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("COOPLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyActor,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" && !allowLegacyActor {
				return fmt.Errorf("COOPLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Coopline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyActor, "allow-legacy-actor-header", false, "accept X-Actor-Id without auth (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveProgramConfig(ctx, workspace, viper.GetString("program"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
