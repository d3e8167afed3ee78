package email

import (
	"fmt"
	"html"

	"setora/internal/models"
)

func (s *Service) generateWelcomeHTML(user *models.User) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Welcome to Setora</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #222;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f4f5f7;
        }
        .container {
            background-color: white;
            padding: 36px;
            border-radius: 12px;
        }
        .logo {
            font-size: 28px;
            font-weight: bold;
            color: #d9480f;
        }
        .footer {
            font-size: 13px;
            color: #6c757d;
            margin-top: 30px;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="logo">Setora</div>
        <h2>Welcome, %s!</h2>

        <p>Your training log is ready. Every day you train gets one entry: log a session in the
        morning and another in the evening and both land on the same day.</p>

        <ul>
            <li>Record exercises set by set with reps, weight and duration</li>
            <li>Mark rest days so your streaks stay honest</li>
            <li>Track your body weight over time</li>
            <li>Save routines as templates and reuse them</li>
        </ul>

        <div class="footer">
            <p>Train well,<br>The Setora Team</p>
            <p>This email was sent to %s because an account was created with this address.</p>
        </div>
    </div>
</body>
</html>`, html.EscapeString(user.Name), html.EscapeString(user.Email))
}

func (s *Service) generateWelcomeText(user *models.User) string {
	return fmt.Sprintf(`Welcome, %s!

Your training log is ready. Every day you train gets one entry: log a session in the
morning and another in the evening and both land on the same day.

- Record exercises set by set with reps, weight and duration
- Mark rest days so your streaks stay honest
- Track your body weight over time
- Save routines as templates and reuse them

Train well,
The Setora Team

---
This email was sent to %s because an account was created with this address.`, user.Name, user.Email)
}
