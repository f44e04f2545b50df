package pipeline

const extractPrompt = `You are a character extraction system for fiction. Analyze the text you are given and extract information about every character mentioned in it.

For each character, provide:
1. Name
2. Physical description and/or role (if available)
3. Personality traits and characteristics (if available)

Respond with a single JSON object of the following shape and nothing else:
{
  "characters": [
    {
      "name": "character name",
      "description": "physical description or role",
      "personality": "personality traits"
    }
  ]
}

If any field is not available in the text, use "Not specified" as the value.
Only include characters that are actually mentioned in the text.`

const extractUserPrefix = "Text to analyze:\n"

const storyPrompt = `Create an engaging short story using the following characters. Make sure to incorporate their descriptions and personalities naturally into the narrative.

Characters:
%s

Please write a creative story (around 500 words) that:
1. Introduces the characters naturally
2. Creates interesting interactions between them
3. Builds a coherent plot with a beginning, middle, and end
4. Stays true to each character's described personality
5. Includes some dialogue to show character dynamics

Story:`
