package seed

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/classpulse/classpulse/backend/internal/discussion"
	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/models"
	"github.com/classpulse/classpulse/backend/internal/store"
)

// Seeder populates the database with classroom discussion data for
// development and testing. All writes go through the discussion service so
// seeded rows look exactly like rows created through the API.
type Seeder struct {
	db    *gorm.DB
	svc   *discussion.Service
	faker *gofakeit.Faker
}

// NewSeeder creates a seeder bound to the given database
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:    db,
		svc:   discussion.NewService(store.NewGormStore(db)),
		faker: gofakeit.New(42),
	}
}

type seedTopic struct {
	title  string
	prompt string
	tags   models.Tags
}

var devTopics = []seedTopic{
	{
		title:  "Comparing fractions with different denominators",
		prompt: "How would you decide which of 3/4 and 5/7 is larger without a calculator? Explain your strategy.",
		tags:   models.Tags{"math", "fractions"},
	},
	{
		title:  "What makes a primary source trustworthy?",
		prompt: "Pick one primary source from this week's reading and discuss what makes it reliable or unreliable.",
		tags:   models.Tags{"history", "sources"},
	},
	{
		title:  "Photosynthesis in low light",
		prompt: "Our basil plants grew slower near the window with the blinds down. What experiments could confirm light is the cause?",
		tags:   models.Tags{"science", "biology"},
	},
	{
		title:  "Favorite metaphor in chapter 4",
		prompt: "Share a metaphor from chapter 4 that stood out to you and explain what it adds to the scene.",
		tags:   models.Tags{"english", "literature"},
	},
	{
		title:  "Debugging your first loop",
		prompt: "Post a loop that did not do what you expected and walk us through how you figured out why.",
		tags:   models.Tags{"cs", "programming"},
	},
	{
		title:  "Is zero an even number?",
		prompt: "Make an argument either way using the definition of even numbers. Respond to at least one classmate.",
		tags:   models.Tags{"math", "number-theory"},
	},
}

// SeedDev fills the database with a realistic set of discussions, nested
// replies, votes, and a report so the moderation queue is not empty.
func (s *Seeder) SeedDev() error {
	ctx := context.Background()

	teacher := models.Author{Name: s.faker.Name(), Role: models.RoleTeacher}
	students := make([]models.Author, 0, 12)
	for i := 0; i < 12; i++ {
		students = append(students, models.Author{Name: s.faker.Name(), Role: models.RoleStudent})
	}

	for _, topic := range devTopics {
		d, err := s.svc.CreateDiscussion(ctx, discussion.CreateDiscussionInput{
			Title:  topic.title,
			Prompt: topic.prompt,
			Tags:   topic.tags,
			Author: teacher,
		})
		if err != nil {
			return fmt.Errorf("seed discussion %q: %w", topic.title, err)
		}

		replyCount := s.faker.Number(2, 5)
		topLevel := make([]*models.Reply, 0, replyCount)
		for i := 0; i < replyCount; i++ {
			student := students[s.faker.Number(0, len(students)-1)]
			r, err := s.svc.AddReply(ctx, discussion.AddReplyInput{
				DiscussionID: d.ID,
				Content:      s.faker.Sentence(s.faker.Number(8, 20)),
				Author:       student,
			})
			if err != nil {
				return fmt.Errorf("seed reply on %q: %w", topic.title, err)
			}
			topLevel = append(topLevel, r)
		}

		// Nest a teacher follow-up under some threads
		for _, parent := range topLevel {
			if s.faker.Bool() {
				continue
			}
			parentID := parent.ID
			if _, err := s.svc.AddReply(ctx, discussion.AddReplyInput{
				DiscussionID:  d.ID,
				ParentReplyID: &parentID,
				Content:       s.faker.Sentence(s.faker.Number(6, 14)),
				Author:        teacher,
			}); err != nil {
				return fmt.Errorf("seed nested reply on %q: %w", topic.title, err)
			}
		}

		// Scatter some upvotes across the thread
		for _, r := range topLevel {
			for v := 0; v < s.faker.Number(0, 4); v++ {
				voter := students[s.faker.Number(0, len(students)-1)]
				replyID := r.ID
				if _, err := s.svc.ToggleVote(ctx, d.ID, voter.Name, &replyID); err != nil {
					return fmt.Errorf("seed vote on %q: %w", topic.title, err)
				}
			}
		}

		logger.InfoWithFields("seeded discussion",
			zap.String("discussion_id", d.ID),
			zap.String("title", d.Title),
			zap.Int("replies", replyCount),
		)
	}

	// Report one reply so the reported queue has content
	discussions, _, err := s.svc.ListDiscussions(ctx)
	if err != nil {
		return err
	}
	if len(discussions) > 0 {
		d, err := s.svc.GetDiscussion(ctx, discussions[0].ID)
		if err != nil {
			return err
		}
		if len(d.Replies) > 0 {
			replyID := d.Replies[0].ID
			if err := s.svc.Report(ctx, d.ID, students[0].Name, models.ReportReasonSpam, &replyID); err != nil {
				return fmt.Errorf("seed report: %w", err)
			}
		}
	}

	return nil
}

// SeedTest creates a minimal dataset: one discussion with a single reply.
func (s *Seeder) SeedTest() error {
	ctx := context.Background()

	d, err := s.svc.CreateDiscussion(ctx, discussion.CreateDiscussionInput{
		Title:  "Test discussion",
		Prompt: "A minimal discussion for integration tests.",
		Tags:   models.Tags{"test"},
		Author: models.Author{Name: "Test Teacher", Role: models.RoleTeacher},
	})
	if err != nil {
		return err
	}

	_, err = s.svc.AddReply(ctx, discussion.AddReplyInput{
		DiscussionID: d.ID,
		Content:      "A minimal reply.",
		Author:       models.Author{Name: "Test Student", Role: models.RoleStudent},
	})
	return err
}

// Clean removes every discussion and reply row. Development use only.
func (s *Seeder) Clean() error {
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Reply{}).Error; err != nil {
		return fmt.Errorf("clean replies: %w", err)
	}
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Discussion{}).Error; err != nil {
		return fmt.Errorf("clean discussions: %w", err)
	}
	logger.Log.Info("seed data removed")
	return nil
}
