package devserver

import "learnplatform/internal/domain"

// DemoContent — учебный контент для локального окружения и тестов.
func DemoContent() *Content {
	return NewContent([]CourseContent{
		{
			ID:          "go-basics",
			Name:        "Go Basics",
			Description: "Синтаксис, типы и управляющие конструкции Go",
			Lessons: []LessonContent{
				{
					ID:          "variables",
					Title:       "Переменные и типы",
					Description: "Объявление переменных, zero values, базовые типы",
					Exercises: []ExerciseContent{
						{
							Exercise: domain.Exercise{
								ID:       "var-1",
								Type:     domain.ExerciseMultipleChoice,
								Question: "Какое значение у неинициализированной переменной типа int?",
								Options:  []string{"0", "nil", "undefined", "-1"},
							},
							Answer: "0",
						},
						{
							Exercise: domain.Exercise{
								ID:       "var-2",
								Type:     domain.ExerciseTrueFalse,
								Question: "Оператор := можно использовать вне тела функции.",
								Options:  []string{"true", "false"},
							},
							Answer: "false",
						},
						{
							Exercise: domain.Exercise{
								ID:       "var-3",
								Type:     domain.ExerciseFillBlank,
								Question: "Ключевое слово для объявления константы: ___",
							},
							Answer: "const",
						},
					},
				},
				{
					ID:          "flow",
					Title:       "Управляющие конструкции",
					Description: "if, for и switch",
					Exercises: []ExerciseContent{
						{
							Exercise: domain.Exercise{
								ID:       "flow-1",
								Type:     domain.ExerciseMultipleChoice,
								Question: "Какой единственный оператор цикла есть в Go?",
								Options:  []string{"for", "while", "loop", "repeat"},
							},
							Answer: "for",
						},
						{
							Exercise: domain.Exercise{
								ID:       "flow-2",
								Type:     domain.ExerciseTrueFalse,
								Question: "Ветки switch в Go проваливаются вниз по умолчанию.",
								Options:  []string{"true", "false"},
							},
							Answer: "false",
						},
					},
				},
				{
					ID:          "functions",
					Title:       "Функции",
					Description: "Множественные возвращаемые значения и defer",
					Exercises: []ExerciseContent{
						{
							Exercise: domain.Exercise{
								ID:       "fn-1",
								Type:     domain.ExerciseFillBlank,
								Question: "Ключевое слово для отложенного вызова: ___",
							},
							Answer: "defer",
						},
						{
							Exercise: domain.Exercise{
								ID:       "fn-2",
								Type:     domain.ExerciseMultipleChoice,
								Question: "По соглашению ошибка возвращается каким значением?",
								Options:  []string{"первым", "последним", "единственным", "не возвращается"},
							},
							Answer: "последним",
						},
					},
				},
			},
		},
		{
			ID:          "concurrency",
			Name:        "Concurrency",
			Description: "Горутины, каналы и паттерны синхронизации",
			Lessons: []LessonContent{
				{
					ID:          "goroutines",
					Title:       "Горутины",
					Description: "Запуск и жизненный цикл горутин",
					Exercises: []ExerciseContent{
						{
							Exercise: domain.Exercise{
								ID:       "gr-1",
								Type:     domain.ExerciseFillBlank,
								Question: "Ключевое слово для запуска горутины: ___",
							},
							Answer: "go",
						},
					},
				},
				{
					ID:          "channels",
					Title:       "Каналы",
					Description: "Отправка, прием и закрытие каналов",
					Exercises: []ExerciseContent{
						{
							Exercise: domain.Exercise{
								ID:       "ch-1",
								Type:     domain.ExerciseTrueFalse,
								Question: "Отправка в nil-канал блокируется навсегда.",
								Options:  []string{"true", "false"},
							},
							Answer: "true",
						},
						{
							Exercise: domain.Exercise{
								ID:       "ch-2",
								Type:     domain.ExerciseMultipleChoice,
								Question: "Что вернет прием из закрытого пустого канала?",
								Options:  []string{"zero value", "panic", "deadlock", "nil"},
							},
							Answer: "zero value",
						},
					},
				},
			},
		},
	})
}
