package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the canonical skill list plus the alias table that maps
// surface forms (lowercase) to canonical names.
type Vocabulary struct {
	Skills  []string          `yaml:"skills"`
	Aliases map[string]string `yaml:"aliases"`
}

// Canonical returns the ordered canonical names: the declared skills followed
// by alias targets that are not declared skills.
func (v Vocabulary) Canonical() []string {
	seen := make(map[string]struct{}, len(v.Skills))
	out := make([]string, 0, len(v.Skills))
	for _, skill := range v.Skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if _, ok := seen[skill]; ok {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}

	for _, alias := range sortedKeys(v.Aliases) {
		target := strings.TrimSpace(v.Aliases[alias])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}

	return out
}

// LoadVocabulary reads a YAML vocabulary file. Missing sections fall back to the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}

	var vocab Vocabulary
	if err := yaml.Unmarshal(data, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %q: %w", path, err)
	}

	def := DefaultVocabulary()
	if len(vocab.Skills) == 0 {
		vocab.Skills = def.Skills
	}
	if vocab.Aliases == nil {
		vocab.Aliases = def.Aliases
	}

	return vocab, nil
}

// DefaultVocabulary returns the built-in Data & AI skill vocabulary.
func DefaultVocabulary() Vocabulary {
	skills := make([]string, len(defaultSkills))
	copy(skills, defaultSkills)

	aliases := make(map[string]string, len(defaultAliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}

	return Vocabulary{Skills: skills, Aliases: aliases}
}

var defaultSkills = []string{
	// generative AI
	"Large Language Models", "LLM", "GPT", "GPT-4", "ChatGPT", "Claude", "Gemini", "Llama",
	"Prompt Engineering", "LangChain", "LlamaIndex", "RAG", "Retrieval Augmented Generation",
	"Generative AI", "GenAI", "Diffusion Models", "Stable Diffusion", "DALL-E", "Midjourney",
	"Fine-tuning", "RLHF", "Instruction Tuning", "LoRA", "QLoRA",

	// ML / DL
	"Machine Learning", "Deep Learning", "Artificial Intelligence", "Neural Networks",
	"Reinforcement Learning", "Transfer Learning", "Federated Learning",
	"TensorFlow", "PyTorch", "Keras", "JAX", "Sklearn", "Scikit-learn",
	"XGBoost", "LightGBM", "CatBoost", "Random Forest", "Gradient Boosting",

	// NLP
	"Natural Language Processing", "NLP", "BERT", "Transformers", "Hugging Face",
	"Sentiment Analysis", "Named Entity Recognition", "Text Classification",
	"Question Answering", "Text Generation", "Summarization", "spaCy", "NLTK",

	// computer vision
	"Computer Vision", "OpenCV", "YOLO", "Object Detection", "Image Classification",
	"Image Segmentation", "Face Recognition", "OCR", "Video Analytics",

	// MLOps
	"MLOps", "ML Pipeline", "Model Deployment", "Model Monitoring", "Model Serving",
	"MLflow", "Kubeflow", "SageMaker", "Vertex AI", "Azure ML",
	"Feature Store", "Model Registry", "A/B Testing ML", "Experiment Tracking",

	// vector search
	"Vector Database", "Pinecone", "Milvus", "Weaviate", "Chroma", "Qdrant",
	"FAISS", "Embeddings", "Semantic Search", "Similarity Search",

	// languages
	"Python", "R", "Java", "Scala", "Julia", "C++", "C#", "JavaScript", "TypeScript",
	"Go", "Rust", "MATLAB", "SAS", "VBA",

	// databases
	"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Cassandra", "DynamoDB",
	"Oracle", "SQL Server", "NoSQL", "Neo4j", "Elasticsearch", "SQLite",
	"Snowflake", "BigQuery", "Redshift", "Databricks", "Teradata", "Hive",

	// data engineering
	"ETL", "ELT", "Data Pipeline", "Data Warehouse", "Data Lake", "Data Mesh",
	"Spark", "PySpark", "Hadoop", "Kafka", "Flink", "Airflow", "Prefect", "Dagster",
	"dbt", "Fivetran", "Talend", "NiFi", "Parquet", "Delta Lake", "Iceberg",
	"Dask", "Polars", "Ray", "Beam",

	// BI and visualization
	"Tableau", "Power BI", "Looker", "Metabase", "Superset", "Grafana",
	"D3.js", "Plotly", "Matplotlib", "Seaborn", "Streamlit", "Dash",

	// cloud
	"AWS", "Azure", "GCP", "Google Cloud", "Cloud Computing",
	"S3", "EC2", "Lambda", "EMR", "Glue", "Athena",
	"Azure Data Factory", "Azure Synapse", "Azure Databricks",
	"Cloud Functions", "Cloud Run", "Dataflow", "Dataproc",

	// devops
	"Git", "GitHub", "GitLab", "Docker", "Kubernetes", "Helm",
	"Jenkins", "CI/CD", "GitHub Actions", "Terraform", "Ansible",
	"Linux", "Bash", "Shell",

	// statistics
	"Statistics", "Data Analysis", "Data Analytics", "Time Series",
	"Forecasting", "A/B Testing", "Hypothesis Testing", "Exploratory Data Analysis",

	// soft skills
	"Communication", "Leadership", "Problem Solving", "Teamwork", "Agile", "Scrum",
}

var defaultAliases = map[string]string{
	"ai":                          "Artificial Intelligence",
	"artificial intelligence":     "Artificial Intelligence",
	"machine learning":            "Machine Learning",
	"ml":                          "Machine Learning",
	"dl":                          "Deep Learning",
	"deep learning":               "Deep Learning",
	"nlp":                         "Natural Language Processing",
	"natural language processing": "Natural Language Processing",
	"genai":                       "Generative AI",
	"generative ai":               "Generative AI",
	"llm":                         "Large Language Models",
	"llms":                        "Large Language Models",
	"large language models":       "Large Language Models",
	"rag":                         "Retrieval Augmented Generation",
	"cv":                          "Computer Vision",
	"computer vision":             "Computer Vision",

	"google cloud platform": "GCP",
	"google cloud":          "GCP",
	"gcp":                   "GCP",
	"amazon web services":   "AWS",
	"aws":                   "AWS",
	"microsoft azure":       "Azure",
	"azure":                 "Azure",

	"pyspark":      "Spark",
	"spark":        "Spark",
	"scikit-learn": "Sklearn",
	"sklearn":      "Sklearn",
	"k8s":          "Kubernetes",
	"tf":           "TensorFlow",
	"tensorflow":   "TensorFlow",
	"hf":           "Hugging Face",
	"huggingface":  "Hugging Face",

	"bi":                    "Business Intelligence",
	"business intelligence": "Business Intelligence",
	"pbi":                   "Power BI",
	"power bi":              "Power BI",
}
